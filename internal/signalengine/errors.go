package signalengine

import (
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// DuplicateSignalError is returned when a batch already holds (code, date).
// 동일 날짜 두 번 평가 = 상위 로직 오류
type DuplicateSignalError struct {
	Code     string
	Date     civil.Date
	Existing contracts.SignalType
	Incoming contracts.SignalType
}

func (e *DuplicateSignalError) Error() string {
	return fmt.Sprintf("duplicate signal for %s on %s (existing %s, incoming %s)",
		e.Code, e.Date, e.Existing, e.Incoming)
}
