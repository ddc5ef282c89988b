package feed

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/shouni/go-scholarship-scan/pkg/extract"
	"github.com/shouni/go-scholarship-scan/pkg/types"
	"github.com/shouni/go-scholarship-scan/pkg/urlutil"
)

// Parserが依存すべきインターフェース
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Parser 構造体
type Parser struct {
	client  Fetcher // インターフェースに依存
	keyword string
}

// NewParser は新しい Parser インスタンスを初期化し、依存関係を注入します。
// *client.Client は Fetcher インターフェースを満たしているため、そのまま代入可能です。
func NewParser(client Fetcher, keyword string) *Parser {
	return &Parser{client: client, keyword: extract.NewExtractor(extract.WithKeyword(keyword)).Keyword()}
}

// FetchAndParse は指定されたURLからフィードを取得し、パースします。
func (p *Parser) FetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	body, err := p.client.FetchBytes(ctx, feedURL)
	if err != nil {
		if _, ok := types.KindOf(err); ok {
			return nil, err
		}
		return nil, types.NewError(types.KindFetch, feedURL, "", fmt.Errorf("フィードの取得失敗: %w", err))
	}

	fp := gofeed.NewParser()
	feed, parseErr := fp.Parse(bytes.NewReader(body))
	if parseErr != nil {
		return nil, types.NewError(types.KindParse, feedURL, "", fmt.Errorf("RSSフィードのパース失敗: %w", parseErr))
	}
	return feed, nil
}

// Invoke はフィードURLを検証・取得し、キーワードを含むアイテムを奨学金エントリとして返します。
// エラー分類はページのパイプラインと同じです。
func (p *Parser) Invoke(ctx context.Context, logger *zap.Logger, rawURL string) (*types.PipelineResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rawURL == "" {
		return nil, types.NewError(types.KindMissingInput, "", "URLが指定されていません", nil)
	}

	sanitized := urlutil.Sanitize(rawURL)
	if out := urlutil.Validate(sanitized); !out.Valid {
		return nil, types.NewError(types.KindInvalidURL, sanitized, string(out.Reason), nil)
	}
	base, err := url.Parse(sanitized)
	if err != nil {
		return nil, types.NewError(types.KindInvalidURL, sanitized, "", err)
	}

	logger = logger.With(zap.String("feed_url", sanitized))

	feed, err := p.FetchAndParse(ctx, sanitized)
	if err != nil {
		return nil, err
	}

	entries := Entries(logger, feed, base, p.keyword)
	logger.Info("フィードからの奨学金情報の抽出が完了しました",
		zap.Int("items", len(feed.Items)),
		zap.Int("points", len(entries)),
	)
	return types.NewPipelineResult(sanitized, entries), nil
}
