package terminology

import (
	"context"
	"errors"
	"testing"
)

// mockProvider implements Provider for testing.
type mockProvider struct {
	validateCodeFn func(ctx context.Context, table, code string) (bool, error)
	calls          int
}

func (m *mockProvider) ValidateCode(ctx context.Context, table, code string) (bool, error) {
	m.calls++
	if m.validateCodeFn != nil {
		return m.validateCodeFn(ctx, table, code)
	}
	return false, errors.New("not implemented")
}

func TestProviderValidateCode_Delegates(t *testing.T) {
	r := loadFixture(t)
	p := &mockProvider{
		validateCodeFn: func(_ context.Context, table, code string) (bool, error) {
			return table == "HL70999" && code == "SITE", nil
		},
	}
	r.SetProvider(p)

	valid, found := r.ValidateCode(context.Background(), "HL70999", "SITE")
	if !found || !valid {
		t.Errorf("ValidateCode(HL70999, SITE) = %v, %v; want true, true", valid, found)
	}
	valid, found = r.ValidateCode(context.Background(), "HL70999", "OTHER")
	if !found || valid {
		t.Errorf("ValidateCode(HL70999, OTHER) = %v, %v; want false, true", valid, found)
	}
	if r.TableType("HL70999") != "external" {
		t.Errorf("TableType(HL70999) = %q, want external", r.TableType("HL70999"))
	}
}

func TestProviderNotUsedForLocalTables(t *testing.T) {
	r := loadFixture(t)
	p := &mockProvider{}
	r.SetProvider(p)

	valid, found := r.ValidateCode(context.Background(), "HL70001", "X")
	if !found || valid {
		t.Errorf("ValidateCode(HL70001, X) = %v, %v; want false, true", valid, found)
	}
	if p.calls != 0 {
		t.Errorf("provider called %d times for a local table", p.calls)
	}
}

func TestProviderErrorFailsOpen(t *testing.T) {
	r := NewRegistry()
	r.SetProvider(ProviderFunc(func(context.Context, string, string) (bool, error) {
		return false, errors.New("service unavailable")
	}))

	valid, found := r.ValidateCode(context.Background(), "HL70999", "SITE")
	if !valid || found {
		t.Errorf("ValidateCode() = %v, %v; want true, false on provider error", valid, found)
	}
}

func TestProviderNilRemoves(t *testing.T) {
	r := NewRegistry()
	r.SetProvider(&mockProvider{})
	r.SetProvider(nil)
	if r.Provider() != nil {
		t.Error("Provider() should be nil after SetProvider(nil)")
	}
	if _, found := r.ValidateCode(context.Background(), "HL70999", "SITE"); found {
		t.Error("ValidateCode() without provider should report table not found")
	}
}
