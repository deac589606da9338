package nlmap

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// LoadCSV reads a grid from a CSV file, gzip-compressed when the name
// ends in .gz. The first row holds longitudes after a leading label
// cell; each following row is a latitude followed by its values.
// Empty or unparseable value cells read as NaN.
func LoadCSV(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		defer gz.Close()
		reader = gz
	}

	g, err := ReadCSV(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ReadCSV parses the LoadCSV layout from r.
func ReadCSV(r io.Reader) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		lons   []float64
		lats   []float64
		values [][]float64
		line   int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cells := strings.Split(text, ",")

		if lons == nil {
			lons = make([]float64, 0, len(cells)-1)
			for _, c := range cells[1:] {
				v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: longitude %q", ErrBadGrid, line, c)
				}
				lons = append(lons, v)
			}
			continue
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(cells[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: latitude %q", ErrBadGrid, line, cells[0])
		}
		row := make([]float64, len(cells)-1)
		for j, c := range cells[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
			if err != nil {
				v = math.NaN()
			}
			row[j] = v
		}
		lats = append(lats, lat)
		values = append(values, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewGrid(lons, lats, values)
}
