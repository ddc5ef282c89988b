package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-scholarship-scan/internal/server"
)

// shutdownTimeout は、シャットダウン時に処理中のリクエストを待つ上限です。
const shutdownTimeout = 15 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "奨学金スキャンのHTTPサービスを起動します",
	Long:  `POST /scrape と GET /health を提供するHTTPサービスを起動します。SIGINT/SIGTERM を受け取ると処理中のリクエストを待ってから終了します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		invoker, err := newInvoker()
		if err != nil {
			return err
		}
		sink, err := openSink(cmd)
		if err != nil {
			return err
		}
		defer sink.Close()

		svc := server.New(invoker,
			server.WithSink(sink),
			server.WithLogger(logger),
			server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           svc.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return eris.Wrap(err, "server listen")
		}

		logger.Info("starting server", zap.Int("port", port), zap.String("output_driver", cfg.Output.Driver))
		return serveUntilDone(ctx, srv, ln, svc)
	},
}

// serveUntilDone は ctx が終了するまで ln でリクエストを受け付けます。
// 終了時は Shutdown の完了と応答後の保存処理をすべて待ってから戻るため、
// 呼び出し元は戻り値を受け取った後に保存先を閉じてかまいません。
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener, svc *server.Server) error {
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server serve")
	}

	// Serve は Shutdown 開始直後に戻るので、処理中のハンドラーが終わるのを待つ
	<-shutdownDone
	svc.Wait()
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
}
