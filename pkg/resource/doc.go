// Package resource turns asynchronous fetches into uniformly-shaped,
// race-safe, refetchable state.
//
// A Scheduler owns one resource. Each Start or Refetch mints a new
// Generation; only the outcome of the current generation is ever applied, so a
// slow earlier request can never overwrite fresher data. Failures and panics
// are recovered into State.Err and never returned to the caller.
//
// Basic Usage:
//
//	scope := resource.NewScope(nil)
//	defer scope.Dispose()
//
//	stake := resource.New(scope, func() resource.Fetch[era.Value[*big.Int]] {
//	    if poolID == "" {
//	        return nil // nothing to fetch yet
//	    }
//	    return func(ctx context.Context) (era.Value[*big.Int], error) {
//	        return pools.Stake(ctx, poolID)
//	    }
//	})
//
//	view := resource.Match(stake.State(), resource.Handlers[era.Value[*big.Int], string]{
//	    Loading: func() string { return "loading" },
//	    Error:   func(err error) string { return err.Error() },
//	    Data:    func(v *era.Value[*big.Int]) (string, error) { return format(v) },
//	})
//
// States from several schedulers are combined with Merge, MergeLast, Merge2,
// Merge3 and Map. None of them touch a scheduler; they are pure functions of
// their inputs.
package resource
