package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/KI7MT/ki7mt-nlmetric/internal/common"
	"github.com/KI7MT/ki7mt-nlmetric/internal/nlmetric"
)

// ErrOutOfRange is returned for a time outside a body's table.
var ErrOutOfRange = errors.New("time outside ephemeris table")

// Row matches the Parquet schema of a tabulated ephemeris.
type Row struct {
	Body   string  `parquet:"body"`
	Time   int64   `parquet:"time"` // Unix seconds
	Lon    float64 `parquet:"lon"`  // Carrington, degrees
	Lat    float64 `parquet:"lat"`  // degrees
	Radius float64 `parquet:"radius"`
}

// Table interpolates tabulated positions per body.
type Table struct {
	bodies map[nlmetric.Body]nlmetric.Trajectory
}

// LoadTable reads a Parquet ephemeris table.
func LoadTable(path string) (*Table, error) {
	rows, err := common.ReadParquet[Row](path)
	if err != nil {
		return nil, err
	}
	return NewTable(rows), nil
}

// NewTable groups rows by body and sorts them by time. Rows repeating a
// body's timestamp after the first are dropped.
func NewTable(rows []Row) *Table {
	bodies := make(map[nlmetric.Body]nlmetric.Trajectory)
	for _, r := range rows {
		b := nlmetric.Body(r.Body)
		bodies[b] = append(bodies[b], nlmetric.Position{
			Time:   time.Unix(r.Time, 0).UTC(),
			Lon:    nlmetric.Wrap360(r.Lon),
			Lat:    r.Lat,
			Radius: r.Radius,
		})
	}
	for b, tr := range bodies {
		sort.SliceStable(tr, func(i, j int) bool { return tr[i].Time.Before(tr[j].Time) })
		dedup := tr[:0]
		for i, p := range tr {
			if i > 0 && p.Time.Equal(dedup[len(dedup)-1].Time) {
				continue
			}
			dedup = append(dedup, p)
		}
		bodies[b] = dedup
	}
	return &Table{bodies: bodies}
}

// Bodies returns the bodies present in the table.
func (t *Table) Bodies() []nlmetric.Body {
	out := make([]nlmetric.Body, 0, len(t.bodies))
	for b := range t.bodies {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Position implements nlmetric.Ephemeris. Longitude is interpolated the
// short way round between neighbouring rows.
func (t *Table) Position(_ context.Context, times []time.Time, body nlmetric.Body) (nlmetric.Trajectory, error) {
	tr, ok := t.bodies[body]
	if !ok || len(tr) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBody, body)
	}

	out := make(nlmetric.Trajectory, len(times))
	for i, ts := range times {
		j := sort.Search(len(tr), func(k int) bool { return !tr[k].Time.Before(ts) })
		switch {
		case j < len(tr) && tr[j].Time.Equal(ts):
			out[i] = tr[j]
			out[i].Time = ts
			continue
		case j == 0 || j == len(tr):
			return nil, fmt.Errorf("%w: %s at %s (table %s to %s)", ErrOutOfRange, body,
				ts.Format(time.RFC3339), tr[0].Time.Format(time.RFC3339), tr[len(tr)-1].Time.Format(time.RFC3339))
		}

		a, b := tr[j-1], tr[j]
		f := ts.Sub(a.Time).Seconds() / b.Time.Sub(a.Time).Seconds()
		out[i] = nlmetric.Position{
			Time:   ts,
			Lon:    nlmetric.Wrap360(a.Lon + f*nlmetric.CircularDelta(a.Lon, b.Lon)),
			Lat:    a.Lat + f*(b.Lat-a.Lat),
			Radius: a.Radius + f*(b.Radius-a.Radius),
		}
	}
	return out, nil
}
