package scoretable

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// ErrSourceNotFound 원본 파일/테이블 없음
var ErrSourceNotFound = errors.New("forecast source not found")

// FormatError means the source is not keyed by exactly (date, instrument)
type FormatError struct {
	Levels []string // index level names that were found
	Row    int      // -1 when the problem is the key shape itself
	Reason string
}

func (e *FormatError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("forecast format error at row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("forecast format error: %s (index levels=%v)", e.Reason, e.Levels)
}

// ScoreColumnNotFoundError lists the columns that were present
type ScoreColumnNotFoundError struct {
	Wanted []string
	Found  []string
}

func (e *ScoreColumnNotFoundError) Error() string {
	return fmt.Sprintf("score column not found: want one of [%s], found [%s]",
		strings.Join(e.Wanted, ", "), strings.Join(e.Found, ", "))
}

// EmptyTableError 파싱 후 남은 행이 없음
type EmptyTableError struct {
	Source  string
	Dropped int
}

func (e *EmptyTableError) Error() string {
	return fmt.Sprintf("forecast table %q is empty (%d rows dropped)", e.Source, e.Dropped)
}

// DuplicateKeyError means (date, instrument) repeats after normalization
type DuplicateKeyError struct {
	Date     civil.Date
	Code     string
	FirstRow int
	Row      int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate forecast key (%s, %s): rows %d and %d", e.Date, e.Code, e.FirstRow, e.Row)
}
