package gesture

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// ErrDimensionMismatch is returned when a query does not match the index width.
var ErrDimensionMismatch = errors.New("feature vector dimension mismatch")

// Neighbor is the result of a nearest-neighbor query.
type Neighbor struct {
	Exemplar *Exemplar
	Distance float64
	Vector   []float64
}

// Name returns the neighbor's exemplar name.
func (n Neighbor) Name() string {
	return n.Exemplar.Name
}

// Index is a k-d tree over exemplars of one width.
type Index struct {
	dims int
	tree *kdtree.Tree
	size int
}

// NewIndex builds an index of the given width. Every exemplar vector must
// have exactly dims finite components.
func NewIndex(dims int, exemplars []*Exemplar) (*Index, error) {
	pts := make(points, 0, len(exemplars))
	for _, e := range exemplars {
		vec := e.Vector()
		if len(vec) != dims {
			return nil, fmt.Errorf("%w: exemplar %q has %d dimensions, index has %d", ErrDimensionMismatch, e.Name, len(vec), dims)
		}
		for _, x := range vec {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("exemplar %q has a non-finite feature", e.Name)
			}
		}
		pts = append(pts, point{vec: vec, exemplar: e})
	}

	ix := &Index{dims: dims, size: len(pts)}
	if len(pts) > 0 {
		ix.tree = kdtree.New(pts, false)
	}
	return ix, nil
}

// Dims returns the index width.
func (ix *Index) Dims() int {
	return ix.dims
}

// Len returns the number of indexed exemplars.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return ix.size
}

// Nearest returns the closest exemplar to v. NaN components of v are
// excluded from the distance. ok is false when the index is empty.
func (ix *Index) Nearest(v []float64) (n Neighbor, ok bool, err error) {
	if ix == nil || ix.size == 0 {
		return Neighbor{}, false, nil
	}
	if len(v) != ix.dims {
		return Neighbor{}, false, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(v), ix.dims)
	}

	got, d2 := ix.tree.Nearest(point{vec: v})
	p, found := got.(point)
	if !found {
		return Neighbor{}, false, nil
	}

	return Neighbor{
		Exemplar: p.exemplar,
		Distance: math.Sqrt(d2),
		Vector:   p.vec,
	}, true, nil
}

// point is an indexed exemplar vector.
type point struct {
	vec      []float64
	exemplar *Exemplar
}

// Compare returns the signed distance along d. It is zero when either side
// is NaN so the search never prunes on an excluded dimension.
func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	a, b := p.vec[d], q.vec[d]
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0
	}
	return a - b
}

func (p point) Dims() int { return len(p.vec) }

// Distance returns the squared Euclidean distance over dimensions where
// both sides are defined.
func (p point) Distance(c kdtree.Comparable) float64 {
	return sqDistance(p.vec, c.(point).vec)
}

func sqDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Distance returns the Euclidean distance between two feature vectors,
// skipping NaN components.
func Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	return math.Sqrt(sqDistance(a, b)), nil
}

type points []point

func (p points) Index(i int) kdtree.Comparable { return p[i] }
func (p points) Len() int                      { return len(p) }
func (p points) Pivot(d kdtree.Dim) int {
	return plane{Dim: d, points: p}.Pivot()
}
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts points along one dimension.
type plane struct {
	kdtree.Dim
	points
}

func (p plane) Less(i, j int) bool {
	return p.points[i].vec[p.Dim] < p.points[j].vec[p.Dim]
}

func (p plane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfRandoms(p, 100))
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}
