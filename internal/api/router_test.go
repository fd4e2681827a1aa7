package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/internal/api/handlers"
	"github.com/wonny/aegis-signal/internal/classifier"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/metrics"
	"github.com/wonny/aegis-signal/internal/poolcache"
	"github.com/wonny/aegis-signal/internal/rebalance"
	"github.com/wonny/aegis-signal/internal/scoretable"
	"github.com/wonny/aegis-signal/internal/store"
	"github.com/wonny/aegis-signal/internal/store/sqlite"
	"github.com/wonny/aegis-signal/internal/strategyconfig"
	"github.com/wonny/aegis-signal/internal/topk"
	"github.com/wonny/aegis-signal/pkg/logger"
	"github.com/wonny/aegis-signal/pkg/redis"
)

type latencyRecorder struct {
	mu     sync.Mutex
	routes []string
}

func (l *latencyRecorder) RecordHTTP(route, method string, _ float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routes = append(l.routes, method+" "+route)
}

type fixture struct {
	router http.Handler
	store  *sqlite.Repo
	run    store.Run
	rec    *latencyRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	frame := scoretable.Frame{
		Source:     "test",
		IndexNames: []string{"datetime", "instrument"},
		Columns:    []string{"score"},
	}
	for _, r := range [][3]string{
		{"2024-01-02", "A", "0.10"},
		{"2024-01-02", "B", "0.50"},
		{"2024-01-02", "C", "0.30"},
		{"2024-01-03", "A", "0.40"},
		{"2024-02-01", "B", "0.20"},
	} {
		frame.Rows = append(frame.Rows, scoretable.Row{Index: []string{r[0], r[1]}, Values: []string{r[2]}})
	}
	table, err := scoretable.Load(frame, scoretable.LoadOptions{})
	require.NoError(t, err)
	idx, err := topk.Build(table, topk.Of(2))
	require.NoError(t, err)

	cls, err := classifier.New(classifier.Thresholds{Buy: 0.02, Sell: -0.02, Strong: 0.05, MinConfidence: 0.6})
	require.NoError(t, err)

	repo, err := sqlite.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	signals := []contracts.TradingSignal{
		{Code: "B", Date: civil.Date{Year: 2024, Month: time.January, Day: 2}, Type: contracts.SignalBuy, Strength: contracts.StrengthMedium},
		{Code: "A", Date: civil.Date{Year: 2024, Month: time.January, Day: 3}, Type: contracts.SignalBuy, Strength: contracts.StrengthMedium},
		{Code: "B", Date: civil.Date{Year: 2024, Month: time.January, Day: 3}, Type: contracts.SignalSell, Strength: contracts.StrengthMedium},
	}
	snap := &strategyconfig.RunSnapshot{ConfigHash: "h", StrategyID: "api", Mode: strategyconfig.ModePool, CreatedAt: time.Now()}
	run := store.NewRun(snap, "test", signals, 0)
	require.NoError(t, repo.SaveRun(context.Background(), run, signals))

	log := logger.Nop()
	pub := poolcache.NewPublisher(redis.NewCache(redis.Disabled(), "test"), 0, log.Zerolog(), nil)
	rec := &latencyRecorder{}

	h := Handlers{
		Pools:    handlers.NewPoolHandler(poolcache.NewResolver(pub, idx), log),
		Calendar: handlers.NewCalendarHandler(table, rebalance.PeriodWeek),
		Classify: handlers.NewClassifyHandler(cls),
		Signals:  handlers.NewSignalHandler(repo, log),
		Metrics:  metrics.New().Handler(),
	}
	router := NewRouter(h, log, RouterOptions{
		Limiter:   redis.NewRateLimiter(redis.Disabled(), "test"),
		RateLimit: redis.APIRateLimit,
		Recorder:  rec,
	})
	return &fixture{router: router, store: repo, run: run, rec: rec}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestPools(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, "GET", "/api/pools/2024-01-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"B", "C"}, body["codes"])

	w, body = f.do(t, "GET", "/api/pools/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-02-01", body["date"])

	w, body = f.do(t, "GET", "/api/pools/20240102/c", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["in_pool"])
	assert.InDelta(t, 0.3, body["score"], 1e-12)

	w, _ = f.do(t, "GET", "/api/pools/2024-03-01", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, "GET", "/api/pools/yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendar(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, "GET", "/api/calendar", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "WEEK", body["period"])
	assert.Equal(t, []interface{}{"2024-01-02", "2024-02-01"}, body["dates"])

	_, body = f.do(t, "GET", "/api/calendar?period=day&start=2024-01-03", "")
	assert.Equal(t, []interface{}{"2024-01-03", "2024-02-01"}, body["dates"])

	w, _ = f.do(t, "GET", "/api/calendar?period=quarter", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, "GET", "/api/calendar?start=2024-02-01&end=2024-01-01", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassify(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, "POST", "/api/classify", `{"score":0.06,"confidence":0.9}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BUY", body["signal_type"])
	assert.Equal(t, "STRONG", body["signal_strength"])

	_, body = f.do(t, "POST", "/api/classify", `{"score":0.06,"confidence":0.9,"in_pool":false}`)
	assert.Equal(t, "HOLD", body["signal_type"])
	assert.Equal(t, classifier.ReasonBuySuppressed, body["reason"])

	_, body = f.do(t, "POST", "/api/classify", `{"score":0.06,"confidence":0.5}`)
	assert.Equal(t, "HOLD", body["signal_type"])

	w, _ = f.do(t, "POST", "/api/classify", `{"confidence":0.9}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, "POST", "/api/classify", `{"score":0.1,"confidence":1.5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, "POST", "/api/classify", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, "GET", "/api/classify", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRunsAndSignals(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, "GET", "/api/runs/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, f.run.ID.String(), body["id"])
	assert.Equal(t, float64(2), body["buy"])

	w, _ = f.do(t, "GET", "/api/runs/"+f.run.ID.String(), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(t, "GET", "/api/runs/latest/signals?type=SELL", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	_, body = f.do(t, "GET", "/api/runs/"+f.run.ID.String()+"/signals?code=b", "")
	assert.Equal(t, float64(2), body["count"])

	w, _ = f.do(t, "GET", "/api/runs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, "GET", "/api/runs/00000000-0000-0000-0000-000000000000", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, "GET", "/api/runs/latest/signals?type=WAIT", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsAndLatency(t *testing.T) {
	f := newFixture(t)

	f.do(t, "GET", "/api/pools/2024-01-02", "")
	w, _ := f.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# HELP")

	assert.Contains(t, f.rec.routes, "GET /api/pools/{date}")
	assert.Contains(t, f.rec.routes, "GET /metrics")
}

func TestRateLimitHeaders(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, "GET", "/api/pools/latest", "")
	assert.Equal(t, "120", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "120", w.Header().Get("X-RateLimit-Remaining"))

	w, _ = f.do(t, "GET", "/health", "")
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRecovery(t *testing.T) {
	r := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(req))
	req.Header.Set("X-Real-IP", "1.2.3.4")
	assert.Equal(t, "1.2.3.4", clientIP(req))
}
