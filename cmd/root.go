package cmd

import (
	"fmt"
	"log"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-scholarship-scan/internal/config"
	"github.com/shouni/go-scholarship-scan/internal/pipeline"
	"github.com/shouni/go-scholarship-scan/internal/store"
	"github.com/shouni/go-scholarship-scan/pkg/client"
	"github.com/shouni/go-scholarship-scan/pkg/extract"
	"github.com/shouni/go-scholarship-scan/pkg/retry"
)

// --- グローバル定数 ---

const (
	appName = "scholarship-scan"

	// 全体処理のタイムアウトはクライアントタイムアウトの何倍かで決める
	overallTimeoutFactor = 2
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	TimeoutSec int    // --timeout タイムアウト
	MaxRetries uint64 // --max-retries 呼び出し側のリトライ回数
	ConfigPath string // --config-path 設定ファイル
	Keyword    string // --keyword 抽出キーワード
}

var (
	Flags AppFlags

	cfg        *config.Config
	logger     *zap.Logger
	pageClient *client.Client
)

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().IntVar(
		&Flags.TimeoutSec,
		"timeout",
		10,
		"HTTPリクエストのタイムアウト時間（秒）",
	)
	rootCmd.PersistentFlags().Uint64Var(
		&Flags.MaxRetries,
		"max-retries",
		retry.DefaultMaxRetries,
		"取得失敗時にスキャン全体を再実行する最大回数",
	)
	rootCmd.PersistentFlags().StringVar(
		&Flags.ConfigPath,
		"config-path",
		"",
		"設定ファイルのパス（省略時は ./scholarship.yaml）",
	)
	rootCmd.PersistentFlags().StringVar(
		&Flags.Keyword,
		"keyword",
		"",
		"抽出キーワード（省略時は設定値）",
	)
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(Flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	applyFlagOverrides(cmd, loaded)
	cfg = loaded

	logger, err = config.NewLogger(cfg.Log, clibase.Flags.Verbose)
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗しました: %w", err)
	}

	timeout := cfg.Fetch.Timeout()
	if clibase.Flags.Verbose {
		log.Printf("HTTPクライアントのタイムアウトを設定しました (Timeout: %s)。", timeout)
		log.Printf("スキャンのリトライ回数を設定しました (MaxRetries: %d)。", cfg.Fetch.MaxRetries)
	}

	// 共有クライアントの初期化
	pageClient = client.New(
		timeout,
		client.WithUserAgent(cfg.Fetch.UserAgent),
		client.WithLogger(logger),
	)
	return nil
}

// applyFlagOverrides は明示的に指定されたフラグで設定値を上書きします。
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("timeout") && Flags.TimeoutSec > 0 {
		c.Fetch.TimeoutSecs = Flags.TimeoutSec
	}
	if flags.Changed("max-retries") {
		c.Fetch.MaxRetries = Flags.MaxRetries
	}
	if flags.Changed("keyword") && Flags.Keyword != "" {
		c.Scan.Keyword = Flags.Keyword
	}
}

// newInvoker は、共有クライアントからパイプラインを組み立て、呼び出し側のリトライで包みます。
func newInvoker() (*retry.RetryingInvoker, error) {
	if pageClient == nil {
		return nil, fmt.Errorf("HTTPクライアントの取得に失敗しました")
	}
	p, err := pipeline.NewPipeline(pageClient, extract.NewExtractor(extract.WithKeyword(cfg.Scan.Keyword)))
	if err != nil {
		return nil, fmt.Errorf("パイプラインの初期化エラー: %w", err)
	}
	return retry.WrapInvoker(p, retryConfig()), nil
}

func retryConfig() retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.Fetch.MaxRetries
	return rc
}

// overallTimeout は、リトライを含む1URL分の処理全体のタイムアウトです。
func overallTimeout() time.Duration {
	return cfg.Fetch.Timeout() * overallTimeoutFactor * time.Duration(cfg.Fetch.MaxRetries+1)
}

// openSink は設定に従って保存先を開きます。
func openSink(cmd *cobra.Command) (store.Sink, error) {
	sink, err := store.New(cmd.Context(), cfg.Output.Driver, cfg.Output.Path)
	if err != nil {
		return nil, fmt.Errorf("保存先の初期化に失敗しました (driver: %s): %w", cfg.Output.Driver, err)
	}
	return sink, nil
}

// --- エントリポイント ---

// Execute は、アプリケーションを実行するメイン関数です。clibaseのExecuteを使用する。
func Execute() {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()

	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		scanCmd,
		batchCmd,
		feedCmd,
		serveCmd,
		historyCmd,
	)
}
