package geo

import (
	"fmt"
	"sort"

	"github.com/dhconnelly/rtreego"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50

	// pointTolerance gives indexed points a non-empty rectangle; rtreego
	// rejects zero-length sides.
	pointTolerance = 1e-9
)

// indexEntry wraps the position of an item for R-Tree indexing.
type indexEntry struct {
	rect *rtreego.Rect
	pos  int
}

func (e *indexEntry) Bounds() *rtreego.Rect {
	return e.rect
}

// Index is an R-Tree over a fixed directory of items. It answers the same
// question as SelectNearby without scanning the whole directory.
type Index[T Positioned] struct {
	tree  *rtreego.Rtree
	items []T
}

// NewIndex validates every item position and inserts it into the tree.
func NewIndex[T Positioned](items []T) (*Index[T], error) {
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	for i, it := range items {
		p := it.Position()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		tree.Insert(&indexEntry{
			rect: rtreego.Point{p.Lat, p.Lon}.ToRect(pointTolerance),
			pos:  i,
		})
	}

	return &Index[T]{tree: tree, items: items}, nil
}

// Len returns the number of indexed items.
func (ix *Index[T]) Len() int {
	return len(ix.items)
}

// Nearby returns the items accepted by WithinBoundingBox around center,
// annotated and ordered exactly like SelectNearby would order them.
func (ix *Index[T]) Nearby(center Coordinate, deltaDegrees float64) ([]Annotated[T], error) {
	if err := center.Validate(); err != nil {
		return nil, fmt.Errorf("center: %w", err)
	}
	if err := ValidateRadius(deltaDegrees); err != nil {
		return nil, err
	}

	// Widen the query slightly: the tree is only a pre-filter and the exact
	// inclusive check below decides.
	pad := deltaDegrees + 2*pointTolerance
	bounds, err := rtreego.NewRect(
		rtreego.Point{center.Lat - pad, center.Lon - pad},
		[]float64{2 * pad, 2 * pad},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid search box: %w", err)
	}

	hits := ix.tree.SearchIntersect(bounds)
	positions := make([]int, 0, len(hits))
	for _, h := range hits {
		if e, ok := h.(*indexEntry); ok {
			positions = append(positions, e.pos)
		}
	}
	// restore input order so ties resolve like SelectNearby
	sort.Ints(positions)

	out := make([]Annotated[T], 0, len(positions))
	for _, i := range positions {
		it := ix.items[i]
		p := it.Position()
		if !WithinBoundingBox(p, center, deltaDegrees) {
			continue
		}
		out = append(out, Annotated[T]{Item: it, DistanceKm: DistanceKm(p, center)})
	}

	sortByDistance(out)
	return out, nil
}
