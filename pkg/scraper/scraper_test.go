package scraper

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// fakeInvoker は URL ごとに結果を返すテスト用の Invoker です。
type fakeInvoker struct {
	delay    time.Duration
	inFlight int32
	maxSeen  int32
	mu       sync.Mutex
	calls    []string
}

func (f *fakeInvoker) Invoke(ctx context.Context, _ *zap.Logger, rawURL string) (*types.PipelineResult, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()

	time.Sleep(f.delay)

	if rawURL == "bad" {
		return nil, types.NewError(types.KindInvalidURL, rawURL, "malformed_scheme", nil)
	}
	return types.NewPipelineResult(rawURL, []types.ScholarshipEntry{{Text: "Scholarship for " + rawURL}}), nil
}

func TestNewParallelScraper_Defaults(t *testing.T) {
	s := NewParallelScraper(&fakeInvoker{}, 0)
	assert.Equal(t, DefaultMaxConcurrency, s.maxConcurrency)
	assert.NotNil(t, s.limiter)
}

func TestScanAll_PreservesOrderAndIsolatesFailures(t *testing.T) {
	inv := &fakeInvoker{delay: 5 * time.Millisecond}
	s := NewParallelScraper(inv, 3, WithRateLimit(0))

	urls := []string{"https://a.example.edu", "bad", "https://c.example.edu", "https://d.example.edu"}
	results := s.ScanAll(context.Background(), urls)

	require.Len(t, results, len(urls))
	for i, res := range results {
		assert.Equal(t, urls[i], res.URL)
	}
	assert.True(t, types.IsKind(results[1].Error, types.KindInvalidURL))
	assert.Nil(t, results[1].Result)

	for _, i := range []int{0, 2, 3} {
		require.NoError(t, results[i].Error)
		assert.Equal(t, "Scholarship for "+urls[i], results[i].Result.Entries[0].Text)
	}
	assert.Len(t, inv.calls, len(urls))
}

func TestScanAll_RespectsConcurrencyLimit(t *testing.T) {
	inv := &fakeInvoker{delay: 20 * time.Millisecond}
	s := NewParallelScraper(inv, 2, WithRateLimit(0))

	urls := make([]string, 8)
	for i := range urls {
		urls[i] = "https://example.edu/" + string(rune('a'+i))
	}
	s.ScanAll(context.Background(), urls)

	assert.LessOrEqual(t, atomic.LoadInt32(&inv.maxSeen), int32(2))
}

func TestScanAll_CanceledContext(t *testing.T) {
	inv := &fakeInvoker{}
	// バースト1のため、2件目以降はレートリミット待機中にキャンセルされる
	s := NewParallelScraper(inv, 1, WithRateLimit(0.001))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	results := s.ScanAll(ctx, []string{"https://a.example.edu", "https://b.example.edu"})
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Error)
	assert.Error(t, results[1].Error)
}
