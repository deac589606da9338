// Package nlmap holds gridded source-surface field maps and samples them
// at Carrington coordinates.
package nlmap

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/KI7MT/ki7mt-nlmetric/internal/nlmetric"
)

// ErrBadGrid is returned for malformed axes or value shapes.
var ErrBadGrid = errors.New("bad map grid")

// Grid is a regular lon/lat map. Longitudes are periodic over 360
// degrees; latitudes outside the axis clamp to the nearest row.
type Grid struct {
	lons   []float64
	lats   []float64
	values *mat.Dense // rows are latitudes, columns longitudes
}

// NewGrid builds a grid. lons must be strictly increasing within one
// turn once wrapped to [0, 360); lats strictly increasing or decreasing.
// values[i][j] is the field at lats[i], lons[j].
func NewGrid(lons, lats []float64, values [][]float64) (*Grid, error) {
	if len(lons) == 0 || len(lats) == 0 {
		return nil, fmt.Errorf("%w: empty axis (%d lons, %d lats)", ErrBadGrid, len(lons), len(lats))
	}
	if len(values) != len(lats) {
		return nil, fmt.Errorf("%w: %d value rows for %d latitudes", ErrBadGrid, len(values), len(lats))
	}

	wl := make([]float64, len(lons))
	for j, l := range lons {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return nil, fmt.Errorf("%w: longitude %d is %v", ErrBadGrid, j, l)
		}
		wl[j] = nlmetric.Wrap360(l)
		if j > 0 && wl[j] <= wl[j-1] {
			return nil, fmt.Errorf("%w: longitudes not increasing at %d", ErrBadGrid, j)
		}
	}

	la := append([]float64(nil), lats...)
	rows := make([][]float64, len(values))
	copy(rows, values)
	if len(la) > 1 && la[0] > la[len(la)-1] {
		for i, k := 0, len(la)-1; i < k; i, k = i+1, k-1 {
			la[i], la[k] = la[k], la[i]
			rows[i], rows[k] = rows[k], rows[i]
		}
	}
	for i, l := range la {
		if math.IsNaN(l) || l < -90 || l > 90 {
			return nil, fmt.Errorf("%w: latitude %d is %v", ErrBadGrid, i, l)
		}
		if i > 0 && l <= la[i-1] {
			return nil, fmt.Errorf("%w: latitudes not monotonic at %d", ErrBadGrid, i)
		}
	}

	data := make([]float64, 0, len(la)*len(wl))
	for i, row := range rows {
		if len(row) != len(wl) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d longitudes", ErrBadGrid, i, len(row), len(wl))
		}
		data = append(data, row...)
	}

	return &Grid{lons: wl, lats: la, values: mat.NewDense(len(la), len(wl), data)}, nil
}

// Dims returns the number of latitudes and longitudes.
func (g *Grid) Dims() (lats, lons int) {
	return g.values.Dims()
}

// Sample implements nlmetric.NeutralLineMap with bilinear interpolation.
// NaN coordinates sample as NaN.
func (g *Grid) Sample(coords []nlmetric.Coordinate) ([]float64, error) {
	out := make([]float64, len(coords))
	for k, c := range coords {
		if math.IsNaN(c.Lon) || math.IsNaN(c.Lat) || math.IsInf(c.Lon, 0) {
			out[k] = math.NaN()
			continue
		}
		j0, j1, fx := g.lonBracket(nlmetric.Wrap360(c.Lon))
		i0, i1, fy := bracket(g.lats, clamp(c.Lat, g.lats[0], g.lats[len(g.lats)-1]))

		lower := lerp(g.values.At(i0, j0), g.values.At(i0, j1), fx)
		upper := lerp(g.values.At(i1, j0), g.values.At(i1, j1), fx)
		out[k] = lerp(lower, upper, fy)
	}
	return out, nil
}

// lonBracket finds the columns either side of lon, wrapping across the
// 360/0 seam.
func (g *Grid) lonBracket(lon float64) (int, int, float64) {
	n := len(g.lons)
	if n == 1 {
		return 0, 0, 0
	}
	j := sort.SearchFloat64s(g.lons, lon)
	switch {
	case j < n && g.lons[j] == lon:
		return j, j, 0
	case j == 0:
		lo := g.lons[n-1] - 360
		return n - 1, 0, (lon - lo) / (g.lons[0] - lo)
	case j == n:
		hi := g.lons[0] + 360
		return n - 1, 0, (lon - g.lons[n-1]) / (hi - g.lons[n-1])
	}
	return j - 1, j, (lon - g.lons[j-1]) / (g.lons[j] - g.lons[j-1])
}

// bracket finds the entries of a sorted axis either side of x, which
// must already lie within the axis.
func bracket(axis []float64, x float64) (int, int, float64) {
	j := sort.SearchFloat64s(axis, x)
	if j < len(axis) && axis[j] == x {
		return j, j, 0
	}
	return j - 1, j, (x - axis[j-1]) / (axis[j] - axis[j-1])
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// lerp skips b entirely at f == 0 so a NaN neighbour with no weight
// does not leak into an exact hit.
func lerp(a, b, f float64) float64 {
	if f == 0 {
		return a
	}
	return a + f*(b-a)
}
