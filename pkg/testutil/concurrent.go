package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"vcregistry/internal/sentinel"
	dErrors "vcregistry/pkg/domain-errors"
)

// ConcurrentResult counts how racing writers fared.
type ConcurrentResult struct {
	Successes int32
	Conflicts int32
	NotFounds int32
	Errors    int32
}

// RunConcurrent starts n goroutines, releases them together, and tallies
// their results. Store sentinels and domain codes are both recognised so
// the helper serves store and service tests alike.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		tally [4]atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			tally[classify(fn(idx))].Add(1)
		}(i)
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: tally[outcomeSuccess].Load(),
		Conflicts: tally[outcomeConflict].Load(),
		NotFounds: tally[outcomeNotFound].Load(),
		Errors:    tally[outcomeError].Load(),
	}
}

const (
	outcomeSuccess = iota
	outcomeConflict
	outcomeNotFound
	outcomeError
)

func classify(err error) int {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, sentinel.ErrAlreadyExists), dErrors.HasCode(err, dErrors.CodeConflict):
		return outcomeConflict
	case errors.Is(err, sentinel.ErrNotFound), dErrors.HasCode(err, dErrors.CodeNotFound):
		return outcomeNotFound
	default:
		return outcomeError
	}
}
