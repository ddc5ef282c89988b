package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/shouni/go-scholarship-scan/pkg/types"
)

const (
	// DefaultMaxRetries は、呼び出し側がパイプライン全体を再実行する既定の最大回数です。
	// パイプライン自体は1回の実行で1回しか取得しないため、既定では再試行しません。
	DefaultMaxRetries = 0

	// バックオフのカスタム設定
	InitialBackoffInterval = 500 * time.Millisecond
	MaxBackoffInterval     = 5 * time.Second
)

// Operation はリトライ可能な処理を表す関数です。成功時は nil を返します。
type Operation func() error

// ShouldRetryFunc はエラーを受け取り、そのエラーがリトライ可能かどうかを判定する関数です。
type ShouldRetryFunc func(error) bool

// Config はリトライ動作を設定するための構造体です。
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: InitialBackoffInterval,
		MaxInterval:     MaxBackoffInterval,
	}
}

// IsFetchError は FetchError のみを再試行対象とする判定関数です。
// 入力不正やパースエラーは何度実行しても結果が変わらないため対象外です。
func IsFetchError(err error) bool {
	return types.IsKind(err, types.KindFetch)
}

func newBackOffPolicy(ctx context.Context, cfg Config) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval

	// 最大リトライ回数とコンテキストを backoff に適用
	return backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
}

// Do は指数バックオフとカスタムエラー判定を使用して操作をリトライします。
// shouldRetryFn が false を返したエラーは即座に、ラップせずに返します。
func Do(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	var lastErr error
	permanent := false

	// リトライ処理内で実行される実際の操作
	retryableOp := func() error {
		err := op()
		if err == nil {
			return nil
		}

		lastErr = err
		if shouldRetryFn(err) {
			return err
		}
		permanent = true
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(retryableOp, newBackOffPolicy(ctx, cfg)); err == nil {
		return nil
	}

	if permanent {
		return lastErr
	}

	// コンテキストキャンセル/タイムアウト
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%sに失敗しました: コンテキストタイムアウト/キャンセル: %w", operationName, errors.Join(ctxErr, lastErr))
	}

	if cfg.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("%sに失敗しました: 最大リトライ回数 (%d回) に到達。最終エラー: %w", operationName, cfg.MaxRetries, lastErr)
}

// Invoker は1URL分のスキャンを実行します。
type Invoker interface {
	Invoke(ctx context.Context, logger *zap.Logger, rawURL string) (*types.PipelineResult, error)
}

// RetryingInvoker は FetchError の場合のみスキャン全体を再実行する Invoker です。
// 1回の実行が行う取得は常に1回で、再実行は呼び出し側の判断です。
type RetryingInvoker struct {
	next Invoker
	cfg  Config
}

// WrapInvoker は next を cfg に従って再実行する Invoker を返します。
func WrapInvoker(next Invoker, cfg Config) *RetryingInvoker {
	return &RetryingInvoker{next: next, cfg: cfg}
}

// Invoke は next.Invoke を実行し、FetchError であればバックオフを挟んで再実行します。
func (r *RetryingInvoker) Invoke(ctx context.Context, logger *zap.Logger, rawURL string) (*types.PipelineResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res *types.PipelineResult
	attempt := 0
	err := Do(ctx, r.cfg, "スキャン", func() error {
		attempt++
		if attempt > 1 {
			logger.Info("スキャンを再試行します", zap.String("url", rawURL), zap.Int("attempt", attempt))
		}
		out, err := r.next.Invoke(ctx, logger, rawURL)
		if err != nil {
			return err
		}
		res = out
		return nil
	}, IsFetchError)
	if err != nil {
		return nil, err
	}
	return res, nil
}
