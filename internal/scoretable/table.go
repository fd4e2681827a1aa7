// Package scoretable holds the immutable (date, instrument) -> score table
// that every downstream component reads from.
package scoretable

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// ScoreAliases are the recognised score column names, in priority order
var ScoreAliases = []string{"score", "score_0", "pred", "prediction"}

// ConfidenceAliases are the recognised optional confidence columns
var ConfidenceAliases = []string{"confidence", "conf"}

// LoadOptions tunes column selection
type LoadOptions struct {
	// ScoreColumn overrides alias detection; it must still be one of ScoreAliases
	ScoreColumn string
}

// Table is the immutable forecast table
// ⭐ SSOT: 생성 이후 변경 없음 (동시 읽기 안전)
type Table struct {
	source      string
	scoreColumn string
	rows        []contracts.Forecast
	index       map[contracts.ForecastKey]int
	byDate      map[civil.Date][]int
	dates       []civil.Date
	codes       []string
	dropped     int
}

// Load validates a frame and builds the table
func Load(frame Frame, opts LoadOptions) (*Table, error) {
	if len(frame.IndexNames) != 2 {
		return nil, &FormatError{
			Levels: frame.IndexNames,
			Row:    -1,
			Reason: fmt.Sprintf("expected 2 index levels (date, instrument), got %d", len(frame.IndexNames)),
		}
	}

	scoreCol, err := resolveScoreColumn(&frame, opts.ScoreColumn)
	if err != nil {
		return nil, err
	}
	confCol := -1
	for _, alias := range ConfidenceAliases {
		if i := frame.columnIndex(alias); i >= 0 {
			confCol = i
			break
		}
	}

	t := &Table{
		source:      frame.Source,
		scoreColumn: frame.Columns[scoreCol],
		rows:        make([]contracts.Forecast, 0, len(frame.Rows)),
		index:       make(map[contracts.ForecastKey]int, len(frame.Rows)),
		byDate:      make(map[civil.Date][]int),
	}
	firstRow := make(map[contracts.ForecastKey]int, len(frame.Rows))
	codeSet := make(map[string]struct{})

	for i, row := range frame.Rows {
		if len(row.Index) != 2 {
			return nil, &FormatError{Levels: frame.IndexNames, Row: i, Reason: fmt.Sprintf("row has %d key parts", len(row.Index))}
		}
		rawDate, rawCode := strings.TrimSpace(row.Index[0]), strings.TrimSpace(row.Index[1])
		if rawDate == "" || rawCode == "" {
			return nil, &FormatError{Levels: frame.IndexNames, Row: i, Reason: "missing date or instrument"}
		}

		date, err := ParseDate(rawDate)
		if err != nil {
			return nil, &FormatError{Levels: frame.IndexNames, Row: i, Reason: err.Error()}
		}
		code := contracts.NormalizeCode(rawCode)

		key := contracts.ForecastKey{Date: date, Code: code}
		if prev, dup := firstRow[key]; dup {
			return nil, &DuplicateKeyError{Date: date, Code: code, FirstRow: prev, Row: i}
		}
		firstRow[key] = i

		score, ok := parseFloat(valueAt(row, scoreCol))
		if !ok {
			// 점수 없는 행은 제외
			t.dropped++
			continue
		}

		f := contracts.Forecast{Code: code, Date: date, Score: score}
		if confCol >= 0 {
			if c, ok := parseFloat(valueAt(row, confCol)); ok {
				if c < 0 || c > 1 {
					return nil, &FormatError{
						Levels: frame.IndexNames,
						Row:    i,
						Reason: fmt.Sprintf("confidence %.4f out of [0,1] for %s on %s", c, code, date),
					}
				}
				f.Confidence = &c
			}
		}

		pos := len(t.rows)
		t.rows = append(t.rows, f)
		t.index[key] = pos
		if _, seen := t.byDate[date]; !seen {
			t.dates = append(t.dates, date)
		}
		t.byDate[date] = append(t.byDate[date], pos)
		codeSet[code] = struct{}{}
	}

	if len(t.rows) == 0 {
		return nil, &EmptyTableError{Source: frame.Source, Dropped: t.dropped}
	}

	sort.Slice(t.dates, func(i, j int) bool { return t.dates[i].Before(t.dates[j]) })
	t.codes = make([]string, 0, len(codeSet))
	for c := range codeSet {
		t.codes = append(t.codes, c)
	}
	sort.Strings(t.codes)

	return t, nil
}

func resolveScoreColumn(frame *Frame, override string) (int, error) {
	if override != "" {
		known := false
		for _, a := range ScoreAliases {
			if a == override {
				known = true
				break
			}
		}
		if i := frame.columnIndex(override); known && i >= 0 {
			return i, nil
		}
		return -1, &ScoreColumnNotFoundError{Wanted: []string{override}, Found: frame.Columns}
	}

	for _, alias := range ScoreAliases {
		if i := frame.columnIndex(alias); i >= 0 {
			return i, nil
		}
	}
	return -1, &ScoreColumnNotFoundError{Wanted: ScoreAliases, Found: frame.Columns}
}

func valueAt(row Row, col int) string {
	if col < 0 || col >= len(row.Values) {
		return ""
	}
	return row.Values[col]
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Source returns the name the table was loaded from
func (t *Table) Source() string { return t.source }

// ScoreColumn returns the column the scores were read from
func (t *Table) ScoreColumn() string { return t.scoreColumn }

// Len returns the number of forecasts
func (t *Table) Len() int { return len(t.rows) }

// Dropped returns how many rows were skipped for missing scores
func (t *Table) Dropped() int { return t.dropped }

// Dates returns all observed dates, ascending. The slice is a copy.
func (t *Table) Dates() []civil.Date {
	out := make([]civil.Date, len(t.dates))
	copy(out, t.dates)
	return out
}

// Instruments returns all instrument codes, ascending
func (t *Table) Instruments() []string {
	out := make([]string, len(t.codes))
	copy(out, t.codes)
	return out
}

// Rows returns the forecasts for one date in original row order
func (t *Table) Rows(date civil.Date) []contracts.Forecast {
	idx := t.byDate[date]
	out := make([]contracts.Forecast, len(idx))
	for i, pos := range idx {
		out[i] = t.rows[pos]
	}
	return out
}

// Lookup returns the forecast for (date, code); code is case-insensitive
func (t *Table) Lookup(date civil.Date, code string) (contracts.Forecast, bool) {
	pos, ok := t.index[contracts.ForecastKey{Date: date, Code: contracts.NormalizeCode(code)}]
	if !ok {
		return contracts.Forecast{}, false
	}
	return t.rows[pos], true
}

// All returns every forecast in original row order
func (t *Table) All() []contracts.Forecast {
	out := make([]contracts.Forecast, len(t.rows))
	copy(out, t.rows)
	return out
}
