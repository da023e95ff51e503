package geo

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// parallelThreshold is the candidate count from which SelectNearby spreads
// the per-candidate work over all CPUs.
const parallelThreshold = 2048

type candidateResult struct {
	accepted bool
	distance float64
	err      error
}

// SelectNearby keeps the candidates inside the bounding box of radiusDegrees
// around center, annotates them with their distance to center and returns them
// nearest first. Candidates at equal distance keep their input order.
//
// The first invalid coordinate (center, then candidates in input order) aborts
// the selection with ErrInvalidCoordinate.
func SelectNearby[T Positioned](center Coordinate, radiusDegrees float64, candidates []T) ([]Annotated[T], error) {
	if err := center.Validate(); err != nil {
		return nil, fmt.Errorf("center: %w", err)
	}
	if err := ValidateRadius(radiusDegrees); err != nil {
		return nil, err
	}

	results := make([]candidateResult, len(candidates))
	if len(candidates) >= parallelThreshold {
		evaluateParallel(center, radiusDegrees, candidates, results)
	} else {
		for i := range candidates {
			results[i] = evaluate(center, radiusDegrees, candidates[i])
		}
	}

	out := make([]Annotated[T], 0)
	for i, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, r.err)
		}
		if r.accepted {
			out = append(out, Annotated[T]{Item: candidates[i], DistanceKm: r.distance})
		}
	}

	sortByDistance(out)
	return out, nil
}

// WithinRadius drops the entries farther than maxKm. A non-positive maxKm
// disables the check and returns items as is.
func WithinRadius[T Positioned](items []Annotated[T], maxKm float64) []Annotated[T] {
	if maxKm <= 0 {
		return items
	}
	out := make([]Annotated[T], 0, len(items))
	for _, it := range items {
		if it.DistanceKm <= maxKm {
			out = append(out, it)
		}
	}
	return out
}

func evaluate[T Positioned](center Coordinate, radiusDegrees float64, candidate T) candidateResult {
	pos := candidate.Position()
	if err := pos.Validate(); err != nil {
		return candidateResult{err: err}
	}
	if !WithinBoundingBox(pos, center, radiusDegrees) {
		return candidateResult{}
	}
	return candidateResult{accepted: true, distance: DistanceKm(pos, center)}
}

// evaluateParallel fills results in place; every goroutine owns a disjoint
// slice range so no locking is needed.
func evaluateParallel[T Positioned](center Coordinate, radiusDegrees float64, candidates []T, results []candidateResult) {
	numCPU := runtime.NumCPU()
	batchSize := (len(candidates) + numCPU - 1) / numCPU

	var wg sync.WaitGroup
	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				results[i] = evaluate(center, radiusDegrees, candidates[i])
			}
		}(start, end)
	}
	wg.Wait()
}

func sortByDistance[T Positioned](items []Annotated[T]) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DistanceKm < items[j].DistanceKm
	})
}
