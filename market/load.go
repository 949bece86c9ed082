package market

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ulikunitz/xz"
	"github.com/xyproto/unzip"
)

// Candle CSV layout: time,open,high,low,close[,volume[,feature...]].
// The time column accepts RFC3339 or "2006-01-02 15:04:05" (UTC).
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// LoadSeriesCSV reads a candle CSV for one symbol. Files ending in .xz are
// decompressed on the fly. Columns beyond volume become feature columns.
func LoadSeriesCSV(path string, info SymbolInfo) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(bufio.NewReader(f))
		if err != nil {
			return nil, fmt.Errorf("xz reader %s: %w", path, err)
		}
		r = xr
	}
	return ReadSeries(r, info)
}

// ReadSeries parses candle CSV rows from r.
func ReadSeries(r io.Reader, info SymbolInfo) (*Series, error) {
	s := &Series{Info: info}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	badLines := 0
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(strings.ToLower(line), "time") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 5 {
			badLines++
			continue
		}

		ts, err := parseTime(parts[0])
		if err != nil {
			badLines++
			continue
		}

		vals := make([]float64, 0, len(parts)-1)
		ok := true
		for _, p := range parts[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				ok = false
				break
			}
			vals = append(vals, v)
		}
		if !ok {
			badLines++
			continue
		}

		c := Candle{
			Open:  vals[0],
			High:  vals[1],
			Low:   vals[2],
			Close: vals[3],
			Time:  ts,
		}
		var features []float64
		if len(vals) > 4 {
			c.Volume = vals[4]
			features = vals[5:]
		}

		s.Times = append(s.Times, ts)
		s.Candles = append(s.Candles, c)
		if features != nil {
			s.Features = append(s.Features, features)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if badLines > 0 {
		log.Warn().Str("symbol", info.Name).Int("bad_lines", badLines).Msg("skipped unparseable candle rows")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ExtractArchive unpacks a .zip candle archive into dir and returns the
// extracted CSV paths.
func ExtractArchive(path, dir string) ([]string, error) {
	if err := unzip.Extract(path, dir); err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	var out []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && (strings.HasSuffix(p, ".csv") || strings.HasSuffix(p, ".csv.xz")) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
