package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shouni/go-scholarship-scan/internal/store"
	"github.com/shouni/go-scholarship-scan/pkg/urlutil"
)

const defaultHistoryLimit = 20

var (
	historyURL   string
	historyLimit int
)

// scanLister は保存済みスキャンを読み出します。
type scanLister interface {
	ListScans(ctx context.Context, url string, limit int) ([]store.Scan, error)
}

// runHistory は rawURL の保存済みスキャンを新しい順に JSON 配列で w に書き出します。
// 保存時のURLはサニタイズ済みなので、検索前に同じ正規化をかけます。
func runHistory(ctx context.Context, lister scanLister, rawURL string, limit int, w io.Writer) error {
	scans, err := lister.ListScans(ctx, urlutil.Sanitize(rawURL), limit)
	if err != nil {
		return fmt.Errorf("保存済みスキャンの取得に失敗しました (URL: %s): %w", rawURL, err)
	}
	if scans == nil {
		scans = []store.Scan{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(scans); err != nil {
		return fmt.Errorf("結果の出力に失敗しました: %w", err)
	}
	return nil
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "SQLiteに保存されたスキャン履歴を表示します",
	Long:  `output.driver が sqlite の場合に、指定URLの保存済みスキャン結果を新しい順にJSONで出力します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Output.Driver != store.DriverSQLite {
			return fmt.Errorf("history は output.driver=%s の場合のみ使用できます (現在: %s)", store.DriverSQLite, cfg.Output.Driver)
		}
		s, err := store.OpenSQLite(cmd.Context(), cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("保存先の初期化に失敗しました (driver: %s): %w", cfg.Output.Driver, err)
		}
		defer s.Close()

		return runHistory(cmd.Context(), s, historyURL, historyLimit, os.Stdout)
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyURL, "url", "u", "", "履歴を表示するURL")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", defaultHistoryLimit, "表示する最大件数")
	_ = historyCmd.MarkFlagRequired("url")
}
