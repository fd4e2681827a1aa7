package poolcache

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/internal/scoretable"
	"github.com/wonny/aegis-signal/internal/topk"
	"github.com/wonny/aegis-signal/pkg/redis"
)

var (
	d1 = civil.Date{Year: 2024, Month: time.January, Day: 2}
	d2 = civil.Date{Year: 2024, Month: time.January, Day: 3}
	d9 = civil.Date{Year: 2024, Month: time.February, Day: 9}
)

type sizeRecorder struct{ sizes []int }

func (r *sizeRecorder) RecordPoolSize(n int) { r.sizes = append(r.sizes, n) }

func sampleIndex(t *testing.T) *topk.Index {
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
	} {
		frame.Rows = append(frame.Rows, scoretable.Row{Index: []string{r[0], r[1]}, Values: []string{r[2]}})
	}
	table, err := scoretable.Load(frame, scoretable.LoadOptions{})
	require.NoError(t, err)
	idx, err := topk.Build(table, topk.Of(2))
	require.NoError(t, err)
	return idx
}

func TestPoolOf(t *testing.T) {
	idx := sampleIndex(t)

	p, ok := PoolOf(idx, d1)
	require.True(t, ok)
	assert.Equal(t, "2024-01-02", p.Date)
	assert.Equal(t, "2", p.K)
	assert.Equal(t, []string{"B", "C"}, p.Codes)
	assert.InDelta(t, 0.5, p.Scores["B"], 1e-12)
	assert.True(t, p.Contains("c"))
	assert.False(t, p.Contains("A"))

	_, ok = PoolOf(idx, d9)
	assert.False(t, ok)
}

func TestPublish_DisabledRedis(t *testing.T) {
	idx := sampleIndex(t)
	rec := &sizeRecorder{}
	pub := NewPublisher(redis.NewCache(redis.Disabled(), "test"), 0, zerolog.Nop(), rec)
	assert.False(t, pub.Enabled())

	n, err := pub.Publish(context.Background(), idx, []civil.Date{d1, d2, d9})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	// latest = 2024-01-03 (종목 1개)
	assert.Equal(t, []int{1}, rec.sizes)

	_, found, err := pub.Get(context.Background(), d1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPublish_NothingToPublish(t *testing.T) {
	rec := &sizeRecorder{}
	pub := NewPublisher(redis.NewCache(redis.Disabled(), "test"), redis.TTLDaily, zerolog.Nop(), rec)

	n, err := pub.Publish(context.Background(), sampleIndex(t), []civil.Date{d9})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, rec.sizes)
}

func TestResolver_FallsBackToIndex(t *testing.T) {
	idx := sampleIndex(t)
	pub := NewPublisher(redis.NewCache(redis.Disabled(), "test"), 0, zerolog.Nop(), nil)
	r := NewResolver(pub, idx)
	ctx := context.Background()

	p, ok, err := r.Pool(ctx, d1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"B", "C"}, p.Codes)

	_, ok, err = r.Pool(ctx, d9)
	require.NoError(t, err)
	assert.False(t, ok)

	latest, ok, err := r.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-01-03", latest.Date)
}

func TestResolver_Empty(t *testing.T) {
	r := NewResolver(nil, nil)
	_, ok, err := r.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
