package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/shouni/go-scholarship-scan/pkg/extract"
	"github.com/shouni/go-scholarship-scan/pkg/parser"
	"github.com/shouni/go-scholarship-scan/pkg/types"
	"github.com/shouni/go-scholarship-scan/pkg/urlutil"
)

// Pipeline は、サニタイズ → バリデーション → 取得 → パース → 抽出 を順に実行します。
// 可変状態を持たないため、同時に複数の呼び出しがあっても互いに独立です。
type Pipeline struct {
	fetcher   Fetcher
	extractor *extract.Extractor
}

// NewPipeline は、新しい Pipeline を生成します。
func NewPipeline(fetcher Fetcher, extractor *extract.Extractor) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("pipeline.NewPipeline: Fetcher cannot be nil")
	}
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
	}, nil
}

// Invoke は、rawURL のページを1回だけ取得し、奨学金に関するリスト項目を抽出します。
// logger はリクエスト単位の診断出力先で、nil の場合は出力しません。
// エラーはすべて *types.PipelineError で、部分的な結果は返しません。
func (p *Pipeline) Invoke(ctx context.Context, logger *zap.Logger, rawURL string) (*types.PipelineResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// 1. 入力チェック
	if rawURL == "" {
		return nil, types.NewError(types.KindMissingInput, "", "URLが指定されていません", nil)
	}

	// 2. サニタイズとバリデーション (ネットワークアクセス前に弾く)
	sanitized := urlutil.Sanitize(rawURL)
	if outcome := urlutil.Validate(sanitized); !outcome.Valid {
		logger.Info("URLのバリデーションに失敗しました",
			zap.String("url", sanitized),
			zap.String("reason", string(outcome.Reason)),
		)
		return nil, types.NewError(types.KindInvalidURL, sanitized, string(outcome.Reason), nil)
	}

	base, err := url.Parse(sanitized)
	if err != nil {
		return nil, types.NewError(types.KindInvalidURL, sanitized, "", err)
	}
	logger = logger.With(zap.String("url", sanitized))

	// 3. 取得 (通信の責務)
	start := time.Now()
	fetched, err := p.fetcher.Fetch(ctx, sanitized)
	if err != nil {
		logger.Warn("ページの取得に失敗しました", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		if _, ok := types.KindOf(err); ok {
			return nil, err
		}
		return nil, types.NewError(types.KindFetch, sanitized, "", err)
	}
	logger.Debug("ページを取得しました",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bytes", len(fetched.RawBody)),
		zap.String("declared_encoding", fetched.DeclaredEncoding),
		zap.String("final_url", fetched.FinalURL),
	)

	// 4. パース (解析の責務)
	doc, err := parser.Parse(fetched)
	if err != nil {
		logger.Warn("ページの解析に失敗しました", zap.Error(err))
		return nil, err
	}

	// 5. 抽出 (リンクは常にサニタイズ後の元URLを基準に解決する)
	entries := p.extractor.Extract(logger, doc, base)
	logger.Info("奨学金情報の抽出が完了しました",
		zap.Int("points", len(entries)),
		zap.String("encoding", doc.Encoding()),
	)

	return types.NewPipelineResult(sanitized, entries), nil
}
