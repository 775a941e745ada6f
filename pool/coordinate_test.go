package pool

import (
	"sync"
	"testing"
)

func TestCoordinateBuilder(t *testing.T) {
	b := AcquireCoordinateBuilder()
	defer b.Release()

	b.WriteString("PID")
	b.AppendField(3)
	b.AppendPosition(1)
	b.AppendPosition(2)

	if got := b.String(); got != "PID-3.1.2" {
		t.Errorf("String() = %q; want %q", got, "PID-3.1.2")
	}

	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len() after Reset = %d; want 0", b.Len())
	}
}

func TestFieldCoordinate(t *testing.T) {
	tests := []struct {
		segment string
		n       int
		want    string
	}{
		{"PID", 3, "PID-3"},
		{"MSH", 12, "MSH-12"},
		{"ZDF", 1, "ZDF-1"},
	}
	for _, tt := range tests {
		if got := FieldCoordinate(tt.segment, tt.n); got != tt.want {
			t.Errorf("FieldCoordinate(%q, %d) = %q; want %q", tt.segment, tt.n, got, tt.want)
		}
	}
}

func TestChildCoordinate(t *testing.T) {
	tests := []struct {
		parent string
		n      int
		want   string
	}{
		{"PID-3", 1, "PID-3.1"},
		{"PID-3.4", 2, "PID-3.4.2"},
		{"OBX-5", 10, "OBX-5.10"},
	}
	for _, tt := range tests {
		if got := ChildCoordinate(tt.parent, tt.n); got != tt.want {
			t.Errorf("ChildCoordinate(%q, %d) = %q; want %q", tt.parent, tt.n, got, tt.want)
		}
	}
}

func TestCoordinateBuilder_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			want := "PV1-" + itoa(n)
			if got := FieldCoordinate("PV1", n); got != want {
				t.Errorf("FieldCoordinate() = %q; want %q", got, want)
			}
		}(i)
	}
	wg.Wait()
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return itoa(n/10) + string(rune('0'+n%10))
}

func BenchmarkFieldCoordinate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = ChildCoordinate(FieldCoordinate("PID", 3), 1)
	}
}
