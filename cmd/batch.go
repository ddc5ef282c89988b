package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-scholarship-scan/internal/store"
	"github.com/shouni/go-scholarship-scan/pkg/retry"
	"github.com/shouni/go-scholarship-scan/pkg/scraper"
	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// コマンドラインフラグ変数を定義
var (
	inputURLs   string  // --urls フラグで受け取るカンマ区切りのURLリスト
	concurrency int     // --concurrency フラグで受け取る並列実行数
	ratePerSec  float64 // --rate フラグで受け取る1秒あたりの開始数
)

// runBatchPipeline は、並列スキャンを実行し、結果を出力するメインロジックです。
func runBatchPipeline(ctx context.Context, urls []string, invoker retry.Invoker, sink store.Sink, concurrency int, rate float64) (successCount, errorCount int) {
	s := scraper.NewParallelScraper(invoker, concurrency,
		scraper.WithRateLimit(rate),
		scraper.WithLogger(logger),
	)

	// 全体のタイムアウト: 1URL分の上限 × 直列に並ぶ段数
	waves := (len(urls) + concurrency - 1) / concurrency
	timeout := overallTimeout() * time.Duration(waves)
	if rate > 0 {
		timeout += time.Duration(float64(len(urls)) / rate * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Printf("並列スキャン開始 (対象URL数: %d, 最大同時実行数: %d, 全体タイムアウト: %s)\n",
		len(urls), concurrency, timeout)

	results := s.ScanAll(ctx, urls)

	fmt.Println("--- 並列スキャン結果 ---")
	for i, res := range results {
		if res.Error != nil {
			errorCount++
			fmt.Printf("❌ [%d] %s\n", i+1, res.URL)
			fmt.Printf("     エラー: %v\n", res.Error)
			continue
		}

		successCount++
		fmt.Printf("✅ [%d] %s\n", i+1, res.URL)
		fmt.Printf("     抽出件数: %d 件\n", len(res.Result.Entries))
		for _, e := range res.Result.Entries {
			if e.URL != nil {
				fmt.Printf("     - %s (%s)\n", e.Text, *e.URL)
			} else {
				fmt.Printf("     - %s\n", e.Text)
			}
		}

		if err := sink.Save(ctx, res.Result.URL, res.Result.Entries); err != nil {
			logger.Error("抽出結果の保存に失敗しました", zap.Error(types.NewError(types.KindPersistence, res.Result.URL, "", err)))
		}
	}
	fmt.Println("-------------------------------")
	fmt.Printf("完了: 成功 %d 件, 失敗 %d 件\n", successCount, errorCount)
	return successCount, errorCount
}

// readURLs は --urls またはstdinからURLリストを読み込みます。
func readURLs() ([]string, error) {
	var urls []string
	if inputURLs != "" {
		for _, u := range strings.Split(inputURLs, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		return urls, nil
	}

	log.Println("URLが指定されていないため、標準入力からURLを読み込みます (Ctrl+DまたはEOFで終了)...")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if u := strings.TrimSpace(scanner.Text()); u != "" {
			urls = append(urls, u)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("標準入力の読み取りエラー: %w", err)
	}
	return urls, nil
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "複数のURLを並列でスキャンします",
	Long:  `--urls フラグでカンマ区切りのURLリストを受け取るか、標準入力からURLを一行ずつ読み込み、指定された最大同時実行数と開始レートで並列スキャンを実行します。1件の失敗は他のURLに影響しません。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		invoker, err := newInvoker()
		if err != nil {
			return err
		}

		urls, err := readURLs()
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return fmt.Errorf("処理対象のURLが一つも指定されていません")
		}

		sink, err := openSink(cmd)
		if err != nil {
			return err
		}
		defer sink.Close()

		n := cfg.Batch.Concurrency
		if cmd.Flags().Changed("concurrency") {
			n = concurrency
		}
		if n <= 0 {
			n = scraper.DefaultMaxConcurrency
		}
		rate := cfg.Batch.RatePerSec
		if cmd.Flags().Changed("rate") {
			rate = ratePerSec
		}

		_, failed := runBatchPipeline(cmd.Context(), urls, invoker, sink, n, rate)
		if failed == len(urls) {
			return fmt.Errorf("すべてのURLのスキャンに失敗しました (%d 件)", failed)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVarP(&inputURLs, "urls", "u", "",
		"スキャン対象のカンマ区切りURLリスト (例: url1,url2,url3)")
	batchCmd.Flags().IntVarP(&concurrency, "concurrency", "c",
		scraper.DefaultMaxConcurrency,
		fmt.Sprintf("最大並列実行数 (デフォルト: %d)", scraper.DefaultMaxConcurrency))
	batchCmd.Flags().Float64Var(&ratePerSec, "rate", scraper.DefaultRatePerSecond,
		"1秒あたりのスキャン開始数 (0以下で無制限)")
}
