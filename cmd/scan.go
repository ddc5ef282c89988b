package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-scholarship-scan/internal/store"
	"github.com/shouni/go-scholarship-scan/pkg/retry"
	"github.com/shouni/go-scholarship-scan/pkg/types"
)

var (
	scanURL    string
	scanOutput string
)

// runScanPipeline は、1URL分のスキャンを全体タイムアウト付きで実行します。
func runScanPipeline(ctx context.Context, invoker retry.Invoker, rawURL string) (*types.PipelineResult, error) {
	ctx, cancel := context.WithTimeout(ctx, overallTimeout())
	defer cancel()

	res, err := invoker.Invoke(ctx, logger, rawURL)
	if err != nil {
		return nil, fmt.Errorf("スキャンエラー: %w", err)
	}
	return res, nil
}

// printResult は結果を {"points": [...]} 形式で標準出力に書き出します。
func printResult(res *types.PipelineResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("結果の出力に失敗しました: %w", err)
	}
	return nil
}

// readURLFromStdin は標準入力から最初の空でない行を読み取ります。
func readURLFromStdin() (string, error) {
	log.Println("URLが指定されていないため、標準入力からURLを読み込みます...")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("標準入力の読み取りエラー: %w", err)
	}
	return "", nil
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "指定されたURLのページから奨学金情報を抽出します",
	Long:  `指定されたURL（省略時は標準入力）のページを1回取得し、"scholarship" を含むリスト項目とそのリンクをJSONで出力します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		invoker, err := newInvoker()
		if err != nil {
			return err
		}

		// 1. 処理対象URLの決定 (フラグ優先)
		rawURL := scanURL
		if rawURL == "" {
			if rawURL, err = readURLFromStdin(); err != nil {
				return err
			}
		}

		// 2. メインロジックの実行
		res, err := runScanPipeline(cmd.Context(), invoker, rawURL)
		if err != nil {
			return err
		}

		// 3. 結果の出力
		if err := printResult(res); err != nil {
			return err
		}
		log.Printf("抽出完了: %d 件 (URL: %s)", len(res.Entries), res.URL)

		// 4. 保存 (失敗しても結果は出力済み)
		saveResult(cmd, res)
		return nil
	},
}

// saveResult は --output が指定されていればファイルへ、そうでなければ設定の保存先へ結果を保存します。
func saveResult(cmd *cobra.Command, res *types.PipelineResult) {
	var sink store.Sink
	var err error
	if scanOutput != "" {
		sink, err = store.NewFileSink(scanOutput)
	} else {
		sink, err = openSink(cmd)
	}
	if err != nil {
		logger.Error("保存先を開けません", zap.Error(types.NewError(types.KindPersistence, res.URL, "", err)))
		return
	}
	defer sink.Close()

	if err := sink.Save(cmd.Context(), res.URL, res.Entries); err != nil {
		logger.Error("抽出結果の保存に失敗しました", zap.Error(types.NewError(types.KindPersistence, res.URL, "", err)))
		return
	}
	if scanOutput != "" {
		log.Printf("抽出結果を保存しました: %s", scanOutput)
	}
}

func init() {
	scanCmd.Flags().StringVarP(&scanURL, "url", "u", "", "スキャン対象のページURL")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "抽出結果 (JSON配列) の保存先ファイル")
}
