package signalengine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/timealign"
)

// Bar is one market bar for an instrument
type Bar struct {
	Code      string
	Timestamp int64 // YYYYMMDDHHMM (or YYYYMMDD)
	Close     decimal.NullDecimal
}

var (
	barCodeAliases  = []string{"instrument", "code", "symbol", "stock_code"}
	barTimeAliases  = []string{"timestamp", "datetime", "time", "date"}
	barCloseAliases = []string{"close", "price"}
)

var barTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
}

// ReadBarsCSV parses instrument,timestamp[,close] rows
func ReadBarsCSV(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("bars csv: empty input")
		}
		return nil, fmt.Errorf("bars csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}

	codeCol, timeCol, closeCol := column(header, barCodeAliases), column(header, barTimeAliases), column(header, barCloseAliases)
	if codeCol < 0 || timeCol < 0 {
		return nil, fmt.Errorf("bars csv: need instrument and timestamp columns, got %s", strings.Join(header, ", "))
	}

	var bars []Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bars csv line %d: %w", line, err)
		}

		code := contracts.NormalizeCode(field(rec, codeCol))
		if code == "" {
			return nil, fmt.Errorf("bars csv line %d: missing instrument", line)
		}
		ts, err := ParseBarTimestamp(field(rec, timeCol))
		if err != nil {
			return nil, fmt.Errorf("bars csv line %d: %w", line, err)
		}

		bar := Bar{Code: code, Timestamp: ts}
		if raw := field(rec, closeCol); raw != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("bars csv line %d: close %q: %w", line, raw, err)
			}
			bar.Close = decimal.NewNullDecimal(d)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// ParseBarTimestamp accepts a compact integer timestamp or a datetime string
func ParseBarTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing timestamp")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	for _, layout := range barTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return timealign.FromTime(t), nil
		}
	}
	return 0, fmt.Errorf("unrecognised timestamp %q", s)
}

// GroupBars splits bars per instrument, each sorted by timestamp
func GroupBars(bars []Bar) map[string][]Bar {
	out := make(map[string][]Bar)
	for _, b := range bars {
		code := contracts.NormalizeCode(b.Code)
		b.Code = code
		out[code] = append(out[code], b)
	}
	for _, list := range out {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp < list[j].Timestamp })
	}
	return out
}

func column(header, aliases []string) int {
	for _, a := range aliases {
		for i, h := range header {
			if h == a {
				return i
			}
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
