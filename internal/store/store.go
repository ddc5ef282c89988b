package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// 出力ドライバ名
const (
	DriverNone   = "none"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Sink は抽出結果の保存先です。保存の失敗はパイプラインの結果に影響しません。
type Sink interface {
	Save(ctx context.Context, sourceURL string, entries []types.ScholarshipEntry) error
	Close() error
}

// New は driver に対応する Sink を生成します。
func New(ctx context.Context, driver, path string) (Sink, error) {
	switch driver {
	case "", DriverNone:
		return NopSink{}, nil
	case DriverFile:
		return NewFileSink(path)
	case DriverSQLite:
		return OpenSQLite(ctx, path)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// NopSink は何も保存しない Sink です。
type NopSink struct{}

func (NopSink) Save(context.Context, string, []types.ScholarshipEntry) error { return nil }

func (NopSink) Close() error { return nil }
