// Package concurrent has the bounded fan-out/fan-in helper used by the
// download pipeline's parallel decrypt, grounded on the teacher's
// ConcurrentMapFuncWithError: an errgroup with a concurrency limit, results
// collected through a buffered channel and restored to input order.
package concurrent

import (
	"cmp"
	"slices"

	"golang.org/x/sync/errgroup"
)

type ordered struct {
	order  int
	output any
}

// MapWithError applies f to every input with at most limit goroutines in
// flight (limit <= 0 means unlimited), returning outputs in input order. If
// any f fails, MapWithError returns the first error once every call has
// finished; calls already scheduled are not cancelled.
func MapWithError[Tin any, Tout any](inputs []Tin, limit int, f func(Tin) (Tout, error)) ([]Tout, error) {
	eg := errgroup.Group{}
	if limit > 0 {
		eg.SetLimit(limit)
	}

	ch := make(chan ordered, len(inputs))

	for i := range inputs {
		order := i
		in := inputs[i]
		eg.Go(func() error {
			out, err := f(in)
			if err != nil {
				return err
			}
			ch <- ordered{order, out}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	close(ch)

	tmp := make([]ordered, 0, len(inputs))
	for t := range ch {
		tmp = append(tmp, t)
	}
	slices.SortFunc(tmp, func(a, b ordered) int { return cmp.Compare(a.order, b.order) })

	outputs := make([]Tout, len(tmp))
	for i, t := range tmp {
		outputs[i] = t.output.(Tout)
	}
	return outputs, nil
}

// WorkerCount returns the download pipeline's decrypt pool size: max(1,
// cores-1), unless override is set.
func WorkerCount(cores, override int) int {
	if override > 0 {
		return override
	}
	if cores <= 1 {
		return 1
	}
	return cores - 1
}
