package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/go-scholarship-scan/pkg/types"
)

const (
	// DefaultMaxConcurrency は、並列スキャンのデフォルトの最大同時実行数を定義します。
	DefaultMaxConcurrency = 6
	// DefaultRatePerSecond は、1秒あたりに開始できるスキャン数の既定値です。
	DefaultRatePerSecond = 1.0
)

// Invoker は、1URL分のパイプライン実行を表します。
type Invoker interface {
	Invoke(ctx context.Context, logger *zap.Logger, rawURL string) (*types.PipelineResult, error)
}

// Scraper は複数URLのスキャン機能を提供するインターフェースです。
type Scraper interface {
	ScanAll(ctx context.Context, urls []string) []types.URLResult
}

// ParallelScraper は Scraper インターフェースを実装する並列処理構造体です。
// 各URLの実行は互いに独立しており、1件の失敗が他の実行を止めることはありません。
type ParallelScraper struct {
	invoker        Invoker
	maxConcurrency int
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// Option は ParallelScraper の設定を行うための関数型です。
type Option func(*ParallelScraper)

// WithRateLimit は1秒あたりの開始数を設定します。0以下の場合は無制限です。
func WithRateLimit(perSecond float64) Option {
	return func(s *ParallelScraper) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger はロガーを設定します。
func WithLogger(logger *zap.Logger) Option {
	return func(s *ParallelScraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewParallelScraper は ParallelScraper を初期化します。
func NewParallelScraper(invoker Invoker, maxConcurrency int, opts ...Option) *ParallelScraper {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	s := &ParallelScraper{
		invoker:        invoker,
		maxConcurrency: maxConcurrency,
		limiter:        rate.NewLimiter(rate.Limit(DefaultRatePerSecond), 1),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanAll は urls を並列にスキャンし、入力と同じ順序で結果を返します。
func (s *ParallelScraper) ScanAll(ctx context.Context, urls []string) []types.URLResult {
	results := make([]types.URLResult, len(urls))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)

	for i, u := range urls {
		g.Go(func() error {
			results[i] = s.scanOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *ParallelScraper) scanOne(ctx context.Context, u string) types.URLResult {
	if err := s.limiter.Wait(ctx); err != nil {
		return types.URLResult{URL: u, Error: fmt.Errorf("レートリミット待機中に中断されました: %w", err)}
	}

	res, err := s.invoker.Invoke(ctx, s.logger.With(zap.String("batch_url", u)), u)
	if err != nil {
		return types.URLResult{URL: u, Error: err}
	}
	return types.URLResult{URL: u, Result: res}
}
