package contracts

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestSignalType_IsActionable(t *testing.T) {
	assert.True(t, SignalBuy.IsActionable())
	assert.True(t, SignalSell.IsActionable())
	assert.False(t, SignalHold.IsActionable())
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "005930", NormalizeCode(" 005930 "))
	assert.Equal(t, "AAPL", NormalizeCode("aapl"))
}

func TestTradingSignal_Key(t *testing.T) {
	d := civil.Date{Year: 2024, Month: 3, Day: 4}
	s := TradingSignal{Code: "AAPL", Date: d, Type: SignalBuy, Strength: StrengthStrong}

	assert.Equal(t, ForecastKey{Date: d, Code: "AAPL"}, s.Key())
	assert.Equal(t, "2024-03-04 AAPL BUY/STRONG", s.String())
}

func TestForecast_HasConfidence(t *testing.T) {
	c := 0.7
	assert.True(t, Forecast{Confidence: &c}.HasConfidence())
	assert.False(t, Forecast{}.HasConfidence())
}

func TestInvalidConfigurationError(t *testing.T) {
	err := error(NewConfigError("top_k", "-1", "must be positive"))
	assert.Equal(t, `invalid configuration top_k="-1": must be positive`, err.Error())

	var cfgErr *InvalidConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "top_k", cfgErr.Field)

	assert.Equal(t, "invalid configuration source: missing", NewConfigError("source", "", "missing").Error())
}
