package pipeline

import (
	"context"

	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Fetcher は、ページの生バイト列と宣言エンコーディングを取得する機能のインターフェースです。
// *client.Client がこれを満たします。
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*types.FetchResult, error)
}
