package upstream

import (
	"context"
	"sync"
)

// Result holds the outcome of one target's share of a fan-out apply.
type Result struct {
	// Target is the target address the operation ran against.
	Target string

	// Err is nil on success.
	Err error
}

// ApplyToAll executes op against every target independently and concurrently.
// A failure on one target never aborts the attempts on the others: enforcement
// points are independent physical devices, and partial application is an
// expected, recoverable condition rather than a transaction failure.
//
// Results are returned in target order, one per target, so the caller can
// compose its own overall success policy.
func ApplyToAll(ctx context.Context, targets []string, op func(ctx context.Context, target string) error) []Result {
	results := make([]Result, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			results[i] = Result{
				Target: target,
				Err:    op(ctx, target),
			}
		}(i, target)
	}
	wg.Wait()

	return results
}

// Succeeded returns the number of results without an error.
func Succeeded(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// AnySucceeded returns true if at least one target succeeded.
func AnySucceeded(results []Result) bool {
	return Succeeded(results) > 0
}

// FailedResults returns the subset of results that carry an error, in
// target order.
func FailedResults(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// FirstError returns the first per-target error, or nil if every target
// succeeded.
func FirstError(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
