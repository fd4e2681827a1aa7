package signalengine

import (
	"context"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// Emitter receives actionable signals in order
type Emitter interface {
	Emit(ctx context.Context, sig contracts.TradingSignal) error
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(ctx context.Context, sig contracts.TradingSignal) error

// Emit implements Emitter
func (f EmitterFunc) Emit(ctx context.Context, sig contracts.TradingSignal) error {
	return f(ctx, sig)
}

// Broker is the external backtest engine's order surface.
// 주문 집행/수량/비용은 외부 엔진 책임
type Broker interface {
	Buy(code string, barTimestamp int64) error
	Sell(code string, barTimestamp int64) error
}

// BrokerAdapter forwards BUY/SELL to a Broker keyed by (code, bar timestamp)
type BrokerAdapter struct {
	broker Broker
}

// NewBrokerAdapter wraps a broker
func NewBrokerAdapter(b Broker) *BrokerAdapter {
	return &BrokerAdapter{broker: b}
}

// Emit implements Emitter
func (a *BrokerAdapter) Emit(_ context.Context, sig contracts.TradingSignal) error {
	switch sig.Type {
	case contracts.SignalBuy:
		return a.broker.Buy(sig.Code, sig.BarTimestamp)
	case contracts.SignalSell:
		return a.broker.Sell(sig.Code, sig.BarTimestamp)
	}
	return nil
}
