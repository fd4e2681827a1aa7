package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/internal/contracts"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.RecordSignal("POOL", contracts.SignalBuy, contracts.StrengthMedium)
	r.RecordSignal("POOL", contracts.SignalBuy, contracts.StrengthMedium)
	r.RecordSignal("POOL", contracts.SignalSell, contracts.StrengthMedium)
	r.RecordLookupMiss("THRESHOLD")
	r.RecordPoolSize(20)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.signals.WithLabelValues("POOL", "BUY", "MEDIUM")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.signals.WithLabelValues("POOL", "SELL", "MEDIUM")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lookupMiss.WithLabelValues("THRESHOLD")))
	assert.Equal(t, 20.0, testutil.ToFloat64(r.poolSize))
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	// 각 Recorder 는 자체 레지스트리 → 중복 등록 패닉 없음
	a := New()
	b := New()
	a.RecordLookupMiss("POOL")

	assert.Equal(t, 0.0, testutil.ToFloat64(b.lookupMiss.WithLabelValues("POOL")))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.RecordRun("portfolio", 0.25)
	r.RecordIndexBuild(0.01)
	r.RecordHTTP("/api/pools/{date}", http.MethodGet, 0.002)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "aegis_signal_run_duration_seconds"))
	assert.True(t, strings.Contains(body, "aegis_signal_index_build_seconds"))
	assert.True(t, strings.Contains(body, "aegis_signal_api_latency_seconds"))
}
