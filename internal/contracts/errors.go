package contracts

import "fmt"

// InvalidConfigurationError is raised at construction time for any invalid
// engine setting. 설정 오류는 시그널 계산 전에 즉시 실패
type InvalidConfigurationError struct {
	Field   string
	Value   string
	Message string
}

func (e *InvalidConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid configuration %s=%q: %s", e.Field, e.Value, e.Message)
}

// NewConfigError builds an InvalidConfigurationError
func NewConfigError(field, value, message string) *InvalidConfigurationError {
	return &InvalidConfigurationError{Field: field, Value: value, Message: message}
}
