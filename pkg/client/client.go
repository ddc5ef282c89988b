package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// ----------------------------------------------------------------------
// 定数
// ----------------------------------------------------------------------

const (
	// DefaultHTTPTimeout は、デフォルトのHTTPタイムアウトです。
	DefaultHTTPTimeout = 10 * time.Second
	// MaxBodySize は、読み込みを許可するレスポンスボディの最大サイズです。
	MaxBodySize = int64(10 * 1024 * 1024)

	// サイトからのブロックを避けるためのUser-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
)

// StatusError は、2xx 以外のステータスコードを示すエラーです。
// エラーボディはコンテンツとして扱いません。
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPステータスコードエラー: %d (%s)", e.StatusCode, e.Status)
}

// Client は resty.Client をラップし、1回だけのGETでページを取得します。
// リトライは行いません。再試行は呼び出し側の責務です。
type Client struct {
	http        *resty.Client
	maxBodySize int64
}

// ----------------------------------------------------------------------
// 設定とコンストラクタ
// ----------------------------------------------------------------------

// ClientOption はClientの設定を行うための関数型です。
type ClientOption func(*Client)

// WithTransport はカスタムの RoundTripper を設定します。
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.http.SetTransport(rt)
	}
}

// WithUserAgent は User-Agent ヘッダーを上書きします。
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.http.SetHeader("User-Agent", ua)
		}
	}
}

// WithLogger は resty の内部ログを zap に流します。
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.http.SetLogger(logger.Sugar())
		}
	}
}

// New は新しいClientを初期化します。timeout が0以下の場合は DefaultHTTPTimeout を使用します。
func New(timeout time.Duration, options ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	httpClient := resty.New()
	httpClient.SetTimeout(timeout)
	httpClient.SetRetryCount(0)
	httpClient.SetHeader("User-Agent", DefaultUserAgent)

	c := &Client{http: httpClient, maxBodySize: MaxBodySize}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// timeout は設定済みのタイムアウトを返します。
func (c *Client) timeout() time.Duration {
	return c.http.GetClient().Timeout
}

// ----------------------------------------------------------------------
// 取得処理
// ----------------------------------------------------------------------

// Fetch は url に対してGETを1回だけ実行し、生のボディと宣言されたエンコーディングを返します。
// 接続失敗、DNS失敗、タイムアウト、2xx以外のステータスはすべて FetchError に集約されます。
func (c *Client) Fetch(ctx context.Context, url string) (*types.FetchResult, error) {
	// ボディは resty に読ませず、上限付きで自前で読む
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		Get(url)
	if err != nil {
		return nil, types.NewError(types.KindFetch, url, "", fmt.Errorf("HTTPリクエストに失敗しました (ネットワーク/接続エラー): %w", err))
	}
	raw := resp.RawBody()
	if raw != nil {
		defer raw.Close()
	}

	if !resp.IsSuccess() {
		return nil, types.NewError(types.KindFetch, url, "", &StatusError{
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
		})
	}

	var body []byte
	if raw != nil {
		body, err = io.ReadAll(io.LimitReader(raw, c.maxBodySize+1))
		if err != nil {
			return nil, types.NewError(types.KindFetch, url, "", fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err))
		}
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, types.NewError(types.KindFetch, url, "", fmt.Errorf("レスポンスボディが最大サイズ (%dバイト) を超えました", c.maxBodySize))
	}

	contentType := resp.Header().Get("Content-Type")
	finalURL := url
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}

	return &types.FetchResult{
		RawBody:          body,
		DeclaredEncoding: declaredCharset(contentType),
		ContentType:      contentType,
		FinalURL:         finalURL,
		StatusCode:       resp.StatusCode(),
	}, nil
}

// FetchBytes は Fetch のボディのみを返します。フィード取得で使用します。
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	res, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return res.RawBody, nil
}

// declaredCharset は Content-Type ヘッダーから charset パラメータを取り出します。
func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
