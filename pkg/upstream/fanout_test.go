package upstream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestApplyToAllOrderAndIndependence(t *testing.T) {
	failA := errors.New("a failed")

	op := func(_ context.Context, target string) error {
		if target == "a" {
			return failA
		}
		return nil
	}

	results := ApplyToAll(context.Background(), []string{"a", "b"}, op)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Target != "a" || results[1].Target != "b" {
		t.Errorf("results out of target order: %q, %q", results[0].Target, results[1].Target)
	}
	if !errors.Is(results[0].Err, failA) {
		t.Errorf("target a: expected failure, got %v", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("target b: expected success despite a failing, got %v", results[1].Err)
	}
}

func TestApplyToAllRunsEveryTarget(t *testing.T) {
	var calls atomic.Int32

	op := func(_ context.Context, _ string) error {
		calls.Add(1)
		return errors.New("boom")
	}

	targets := []string{"one", "two", "three", "four"}
	results := ApplyToAll(context.Background(), targets, op)

	if got := calls.Load(); got != int32(len(targets)) {
		t.Errorf("expected %d attempts, got %d", len(targets), got)
	}
	if Succeeded(results) != 0 {
		t.Errorf("expected 0 successes, got %d", Succeeded(results))
	}
	if len(FailedResults(results)) != len(targets) {
		t.Errorf("expected %d failures, got %d", len(targets), len(FailedResults(results)))
	}
}

func TestApplyToAllEmptyTargets(t *testing.T) {
	results := ApplyToAll(context.Background(), nil, func(_ context.Context, _ string) error {
		t.Fatal("op must not be called for empty target list")
		return nil
	})
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if AnySucceeded(results) {
		t.Error("AnySucceeded over empty results must be false")
	}
}

func TestResultHelpers(t *testing.T) {
	boom := errors.New("boom")
	results := []Result{
		{Target: "a", Err: nil},
		{Target: "b", Err: boom},
		{Target: "c", Err: nil},
	}

	if Succeeded(results) != 2 {
		t.Errorf("Succeeded = %d, want 2", Succeeded(results))
	}
	if !AnySucceeded(results) {
		t.Error("AnySucceeded = false, want true")
	}
	if !errors.Is(FirstError(results), boom) {
		t.Errorf("FirstError = %v, want %v", FirstError(results), boom)
	}
	failed := FailedResults(results)
	if len(failed) != 1 || failed[0].Target != "b" {
		t.Errorf("FailedResults = %+v, want one result for target b", failed)
	}
}
