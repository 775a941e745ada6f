package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofhir/hl7validator/pkg/issue"
	"github.com/gofhir/hl7validator/pkg/message"
	"github.com/gofhir/hl7validator/pkg/registry"
	"github.com/gofhir/hl7validator/pkg/validator"
)

// fakeValidate returns one error issue per byte of a message starting with
// "E", and fails messages starting with "!".
func fakeValidate(delay time.Duration) ValidateFunc {
	return func(ctx context.Context, raw []byte, _ ...validator.ValidateOption) (*validator.Result, error) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		res := issue.NewResult()
		switch {
		case len(raw) > 0 && raw[0] == '!':
			return nil, fmt.Errorf("%w: bad", message.ErrMalformedMessage)
		case len(raw) > 0 && raw[0] == 'E':
			res.AddError(issue.CodeInvalid, string(raw))
		}
		return &validator.Result{Result: res}, nil
	}
}

func jobs(data ...string) []Job {
	out := make([]Job, len(data))
	for i, d := range data {
		out[i] = Job{Name: fmt.Sprintf("m%d", i), Data: []byte(d)}
	}
	return out
}

func TestBatchValidator_EmptyBatch(t *testing.T) {
	bv := NewBatchValidator(fakeValidate(0), 2)
	result, err := bv.ValidateBatch(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalJobs != 0 || len(result.Results) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestBatchValidator_DefaultWorkers(t *testing.T) {
	if bv := NewBatchValidator(fakeValidate(0), 0); bv.Workers() <= 0 {
		t.Errorf("workers = %d; want > 0", bv.Workers())
	}
}

func TestBatchValidator_KeepsOrder(t *testing.T) {
	var n atomic.Int32
	slowFirst := func(ctx context.Context, raw []byte, opts ...validator.ValidateOption) (*validator.Result, error) {
		if n.Add(1) == 1 {
			time.Sleep(20 * time.Millisecond)
		}
		return fakeValidate(0)(ctx, raw, opts...)
	}

	bv := NewBatchValidator(slowFirst, 4)
	result, err := bv.ValidateBatch(context.Background(), jobs("a", "E1", "b", "E2", "c"))
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range result.Results {
		if want := fmt.Sprintf("m%d", i); r.Name != want {
			t.Errorf("Results[%d].Name = %s, want %s", i, r.Name, want)
		}
	}
	if result.CompletedJobs != 5 {
		t.Errorf("CompletedJobs = %d", result.CompletedJobs)
	}
	if !result.HasErrors() || result.ErrorCount() != 2 {
		t.Errorf("ErrorCount() = %d, want 2", result.ErrorCount())
	}
}

func TestBatchValidator_MalformedOnlyFailsItsJob(t *testing.T) {
	bv := NewBatchValidator(fakeValidate(0), 2)
	result, err := bv.ValidateBatch(context.Background(), jobs("a", "!x", "b"))
	if err != nil {
		t.Fatalf("ValidateBatch() error = %v", err)
	}
	if result.FailedJobs != 1 || result.CompletedJobs != 3 {
		t.Errorf("failed = %d, completed = %d", result.FailedJobs, result.CompletedJobs)
	}
	if !errors.Is(result.Results[1].Error, message.ErrMalformedMessage) {
		t.Errorf("Results[1].Error = %v", result.Results[1].Error)
	}
	if !result.HasErrors() {
		t.Error("HasErrors() = false with a failed job")
	}
}

func TestBatchValidator_SchemaErrorStops(t *testing.T) {
	schemaErr := func(ctx context.Context, raw []byte, _ ...validator.ValidateOption) (*validator.Result, error) {
		if string(raw) == "bad" {
			return nil, fmt.Errorf("%w: xsd/ADT_A01.xsd", registry.ErrSchema)
		}
		select {
		case <-time.After(time.Second):
			return &validator.Result{Result: issue.NewResult()}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	bv := NewBatchValidator(schemaErr, 2)
	_, err := bv.ValidateBatch(context.Background(), jobs("bad", "a", "b", "c"))
	if !errors.Is(err, registry.ErrSchema) {
		t.Errorf("ValidateBatch() error = %v, want ErrSchema", err)
	}
}

func TestBatchValidator_Limit(t *testing.T) {
	var running, peak atomic.Int32
	limited := func(ctx context.Context, raw []byte, _ ...validator.ValidateOption) (*validator.Result, error) {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return &validator.Result{Result: issue.NewResult()}, nil
	}

	bv := NewBatchValidator(limited, 2)
	if _, err := bv.ValidateBatch(context.Background(), jobs("a", "b", "c", "d", "e", "f")); err != nil {
		t.Fatal(err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestBatchValidator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bv := NewBatchValidator(fakeValidate(0), 2)
	result, err := bv.ValidateBatch(ctx, jobs("a", "b"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ValidateBatch() error = %v, want context.Canceled", err)
	}
	if result.CompletedJobs != 0 {
		t.Errorf("ran %d jobs on a cancelled context", result.CompletedJobs)
	}
}

func TestValidateBatchSimple(t *testing.T) {
	result, err := ValidateBatchSimple(context.Background(), fakeValidate(0), jobs("a", "b", "c"))
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalJobs != 3 || result.CompletedJobs != 3 || result.HasErrors() {
		t.Errorf("result = %+v", result)
	}
}
