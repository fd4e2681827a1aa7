package scoretable

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func newFrame(columns []string, rows ...Row) Frame {
	return Frame{
		Source:     "test",
		IndexNames: []string{"datetime", "instrument"},
		Columns:    columns,
		Rows:       rows,
	}
}

func row(date, code string, values ...string) Row {
	return Row{Index: []string{date, code}, Values: values}
}

func TestLoad_Basic(t *testing.T) {
	frame := newFrame([]string{"feature_a", "score", "confidence"},
		row("2024-01-02", "sh600000", "1", "0.5", "0.9"),
		row("2024-01-02", "SZ000001", "2", "-0.2", ""),
		row("2024-01-03", "sh600000", "3", "0.1", "0.4"),
	)

	table, err := Load(frame, LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, "score", table.ScoreColumn())
	assert.Equal(t, []civil.Date{day(2024, 1, 2), day(2024, 1, 3)}, table.Dates())
	assert.Equal(t, []string{"SH600000", "SZ000001"}, table.Instruments())

	f, ok := table.Lookup(day(2024, 1, 2), "sh600000")
	require.True(t, ok, "lookup should be case-insensitive")
	assert.Equal(t, "SH600000", f.Code)
	assert.Equal(t, 0.5, f.Score)
	require.NotNil(t, f.Confidence)
	assert.Equal(t, 0.9, *f.Confidence)

	f, ok = table.Lookup(day(2024, 1, 2), "SZ000001")
	require.True(t, ok)
	assert.Nil(t, f.Confidence)

	_, ok = table.Lookup(day(2024, 1, 4), "SH600000")
	assert.False(t, ok)
}

func TestLoad_ScoreAliases(t *testing.T) {
	for _, alias := range ScoreAliases {
		t.Run(alias, func(t *testing.T) {
			table, err := Load(newFrame([]string{alias}, row("2024-01-02", "A", "1.5")), LoadOptions{})
			require.NoError(t, err)
			assert.Equal(t, alias, table.ScoreColumn())
		})
	}
}

func TestLoad_ScoreColumnNotFound(t *testing.T) {
	_, err := Load(newFrame([]string{"open", "close"}, row("2024-01-02", "A", "1", "2")), LoadOptions{})

	var notFound *ScoreColumnNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{"open", "close"}, notFound.Found)
	assert.Contains(t, err.Error(), "open, close")
}

func TestLoad_ScoreColumnOverride(t *testing.T) {
	frame := newFrame([]string{"score", "pred"}, row("2024-01-02", "A", "1", "2"))

	table, err := Load(frame, LoadOptions{ScoreColumn: "pred"})
	require.NoError(t, err)
	f, _ := table.Lookup(day(2024, 1, 2), "A")
	assert.Equal(t, 2.0, f.Score)

	_, err = Load(frame, LoadOptions{ScoreColumn: "close"})
	var notFound *ScoreColumnNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestLoad_SingleLevelIndex(t *testing.T) {
	frame := Frame{
		IndexNames: []string{"datetime"},
		Columns:    []string{"score"},
		Rows:       []Row{{Index: []string{"2024-01-02"}, Values: []string{"1"}}},
	}

	_, err := Load(frame, LoadOptions{})
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, -1, formatErr.Row)
}

func TestLoad_MissingKeyPart(t *testing.T) {
	_, err := Load(newFrame([]string{"score"}, row("2024-01-02", "", "1")), LoadOptions{})
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, 0, formatErr.Row)
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(newFrame([]string{"score"}), LoadOptions{})
	var empty *EmptyTableError
	assert.ErrorAs(t, err, &empty)

	// 모든 점수가 비어있는 경우
	_, err = Load(newFrame([]string{"score"}, row("2024-01-02", "A", ""), row("2024-01-02", "B", "nan")), LoadOptions{})
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, 2, empty.Dropped)
}

func TestLoad_IntradayDuplicate(t *testing.T) {
	frame := newFrame([]string{"score"},
		row("2024-01-02 09:30:00", "A", "1"),
		row("2024-01-02 15:00:00", "a", "2"),
	)

	_, err := Load(frame, LoadOptions{})
	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, day(2024, 1, 2), dup.Date)
	assert.Equal(t, "A", dup.Code)
	assert.Equal(t, 0, dup.FirstRow)
	assert.Equal(t, 1, dup.Row)
}

func TestLoad_ConfidenceOutOfRange(t *testing.T) {
	_, err := Load(newFrame([]string{"score", "confidence"}, row("2024-01-02", "A", "1", "1.5")), LoadOptions{})
	var formatErr *FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    civil.Date
		wantErr bool
	}{
		{"2024-01-15", day(2024, 1, 15), false},
		{"2024-01-15 14:30:00", day(2024, 1, 15), false},
		{"2024-01-15T14:30:00+09:00", day(2024, 1, 15), false},
		{"20240115", day(2024, 1, 15), false},
		{"202401151430", day(2024, 1, 15), false},
		{"2024/01/15", day(2024, 1, 15), false},
		{"20241315", civil.Date{}, true},
		{"yesterday", civil.Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSVFrame(t *testing.T) {
	src := "datetime,instrument,score_0,confidence\n" +
		"2024-01-02,SH600000,0.12,0.8\n" +
		"2024-01-02,SZ000001,-0.05,\n"

	frame, err := ReadCSVFrame(strings.NewReader(src), "inline")
	require.NoError(t, err)
	assert.Equal(t, []string{"datetime", "instrument"}, frame.IndexNames)
	assert.Equal(t, []string{"score_0", "confidence"}, frame.Columns)
	assert.Len(t, frame.Rows, 2)
}

func TestReadCSVFrame_SingleIndex(t *testing.T) {
	_, err := ReadCSVFrame(strings.NewReader("datetime,score\n2024-01-02,1\n"), "inline")
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, []string{"datetime"}, formatErr.Levels)
}

func TestLoader_LoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pred.csv")
	content := "instrument,datetime,prediction\n" +
		"sh600000,2024-01-02,0.3\n" +
		"sh600001,2024-01-02,0.1\n" +
		"sh600000,2024-01-03,-0.4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loader := NewLoader(zerolog.Nop())
	table, err := loader.LoadCSV(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, "prediction", table.ScoreColumn())
	assert.Len(t, table.Rows(day(2024, 1, 2)), 2)
}

func TestLoader_LoadCSV_NotFound(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	_, err := loader.LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), LoadOptions{})
	assert.True(t, errors.Is(err, ErrSourceNotFound))
}

func TestLoadReader(t *testing.T) {
	body := "date,code,score\n2024-01-02,a,0.5\n2024-01-02,b,0.1\n"
	table, err := NewLoader(zerolog.Nop()).LoadReader(strings.NewReader(body), "http://forecasts/latest.csv", LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	f, ok := table.Lookup(day(2024, 1, 2), "A")
	require.True(t, ok)
	assert.InDelta(t, 0.5, f.Score, 1e-9)
}
