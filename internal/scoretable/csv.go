package scoretable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DateAliases / InstrumentAliases identify the two key columns of a CSV
var (
	DateAliases       = []string{"datetime", "date", "trade_date"}
	InstrumentAliases = []string{"instrument", "code", "symbol", "stock_code"}
)

// Loader reads forecast tables from files
type Loader struct {
	log zerolog.Logger
}

// NewLoader 새 로더 생성
func NewLoader(log zerolog.Logger) *Loader {
	return &Loader{
		log: log.With().Str("component", "scoretable.loader").Logger(),
	}
}

// LoadCSV opens, fully parses and closes a forecast CSV
func (l *Loader) LoadCSV(path string, opts LoadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("open forecast file: %w", err)
	}
	defer f.Close()

	return l.LoadReader(f, path, opts)
}

// LoadReader parses a forecast CSV stream; source names it in errors and logs
func (l *Loader) LoadReader(r io.Reader, source string, opts LoadOptions) (*Table, error) {
	frame, err := ReadCSVFrame(r, source)
	if err != nil {
		return nil, err
	}

	table, err := Load(frame, opts)
	if err != nil {
		return nil, err
	}

	l.log.Info().
		Str("source", source).
		Str("score_column", table.ScoreColumn()).
		Int("rows", table.Len()).
		Int("dropped", table.Dropped()).
		Int("dates", len(table.dates)).
		Int("instruments", len(table.codes)).
		Msg("forecast table loaded")

	return table, nil
}

// ReadCSVFrame converts a CSV stream into a Frame.
// 헤더에서 날짜/종목 컬럼을 찾아 2단계 인덱스로 구성
func ReadCSVFrame(r io.Reader, source string) (Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, &EmptyTableError{Source: source}
		}
		return Frame{}, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}

	dateCol := findAlias(header, DateAliases)
	codeCol := findAlias(header, InstrumentAliases)

	frame := Frame{Source: source}
	if dateCol >= 0 {
		frame.IndexNames = append(frame.IndexNames, header[dateCol])
	}
	if codeCol >= 0 {
		frame.IndexNames = append(frame.IndexNames, header[codeCol])
	}
	if len(frame.IndexNames) != 2 {
		return Frame{}, &FormatError{
			Levels: frame.IndexNames,
			Row:    -1,
			Reason: "csv must carry both a date and an instrument column",
		}
	}

	valueCols := make([]int, 0, len(header))
	for i, name := range header {
		if i == dateCol || i == codeCol {
			continue
		}
		frame.Columns = append(frame.Columns, name)
		valueCols = append(valueCols, i)
	}

	line := 0
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Frame{}, fmt.Errorf("read csv row %d: %w", line, err)
		}

		row := Row{
			Index:  []string{rec[dateCol], rec[codeCol]},
			Values: make([]string, len(valueCols)),
		}
		for j, c := range valueCols {
			if c < len(rec) {
				row.Values[j] = rec[c]
			}
		}
		frame.Rows = append(frame.Rows, row)
		line++
	}

	return frame, nil
}

func findAlias(header []string, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range header {
			if h == alias {
				return i
			}
		}
	}
	return -1
}
