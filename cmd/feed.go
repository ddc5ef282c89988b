package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/shouni/go-scholarship-scan/pkg/feed"
	"github.com/shouni/go-scholarship-scan/pkg/retry"
	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// フィードURLを保持するフラグ変数
var feedURL string

// runFeedPipeline は、フィードの取得・パース・抽出を実行するメインロジックです。
func runFeedPipeline(ctx context.Context, invoker retry.Invoker, url string) (*types.PipelineResult, error) {
	ctx, cancel := context.WithTimeout(ctx, overallTimeout())
	defer cancel()

	res, err := invoker.Invoke(ctx, logger, url)
	if err != nil {
		return nil, fmt.Errorf("フィードのスキャンエラー (URL: %s): %w", url, err)
	}
	return res, nil
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "RSS/Atomフィードから奨学金情報を抽出します",
	Long:  `指定されたURLからRSSまたはAtomフィードを取得し、タイトルまたは説明文にキーワードを含むアイテムをJSONで出力します。アイテムのリンクはフィードURLに対して解決されます。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if pageClient == nil {
			return fmt.Errorf("HTTPクライアントの取得に失敗しました")
		}
		log.Printf("処理対象フィードURL: %s (全体タイムアウト: %s)", feedURL, overallTimeout())

		parser := feed.NewParser(pageClient, cfg.Scan.Keyword)
		res, err := runFeedPipeline(cmd.Context(), retry.WrapInvoker(parser, retryConfig()), feedURL)
		if err != nil {
			return err
		}

		if err := printResult(res); err != nil {
			return err
		}
		log.Printf("抽出完了: %d 件 (URL: %s)", len(res.Entries), res.URL)
		return nil
	},
}

func init() {
	feedCmd.Flags().StringVarP(&feedURL, "url", "u", "", "スキャン対象のフィード (RSS/Atom) URL")
	_ = feedCmd.MarkFlagRequired("url")
}
