package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// saveTimeout は応答後に行う保存処理1回あたりの上限時間です。
const saveTimeout = 30 * time.Second

// maxRequestBody は POST /scrape が受け付けるリクエストボディの上限です。
const maxRequestBody = 1 << 20

// Invoker は1URL分のスキャンを実行します。
type Invoker interface {
	Invoke(ctx context.Context, logger *zap.Logger, rawURL string) (*types.PipelineResult, error)
}

// Sink は抽出結果の保存先です。
type Sink interface {
	Save(ctx context.Context, sourceURL string, entries []types.ScholarshipEntry) error
}

// Server は POST /scrape と GET /health を提供するHTTPハンドラーです。
type Server struct {
	invoker        Invoker
	sink           Sink
	logger         *zap.Logger
	allowedOrigins []string

	saves sync.WaitGroup
}

// Option は Server の設定を行うための関数型です。
type Option func(*Server)

// WithSink は応答後に結果を保存する Sink を設定します。
func WithSink(sink Sink) Option {
	return func(s *Server) {
		s.sink = sink
	}
}

// WithLogger はロガーを設定します。
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAllowedOrigins はCORSで許可するオリジンを設定します。
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// New は Server を生成します。
func New(invoker Invoker, opts ...Option) *Server {
	s := &Server{
		invoker:        invoker,
		logger:         zap.NewNop(),
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler はルーティング済みの http.Handler を返します。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/scrape", s.handleScrape)
	return r
}

// Wait は応答後に開始した保存処理がすべて終わるまで待ちます。
func (s *Server) Wait() {
	s.saves.Wait()
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Info("リクエストボディが上限を超えました", zap.Int64("limit", tooLarge.Limit))
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		logger.Info("リクエストボディを解析できません", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "Missing URL")
		return
	}

	res, err := s.invoker.Invoke(r.Context(), logger, req.URL)
	if err != nil {
		status, msg := statusFor(err)
		logger.Info("スキャンに失敗しました", zap.Int("status", status), zap.Error(err))
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, res)
	s.persist(logger, res)
}

// persist は応答とは独立して結果を保存します。失敗はログに記録するのみです。
func (s *Server) persist(logger *zap.Logger, res *types.PipelineResult) {
	if s.sink == nil {
		return
	}
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if err := s.sink.Save(ctx, res.URL, res.Entries); err != nil {
			perr := types.NewError(types.KindPersistence, res.URL, "", err)
			logger.Error("抽出結果の保存に失敗しました", zap.Error(perr))
		}
	}()
}

// statusFor はエラー種別をHTTPステータスに対応付けます。
func statusFor(err error) (int, string) {
	kind, _ := types.KindOf(err)
	switch kind {
	case types.KindMissingInput:
		return http.StatusBadRequest, "Missing URL"
	case types.KindInvalidURL:
		return http.StatusBadRequest, "Invalid URL"
	case types.KindFetch:
		return http.StatusBadGateway, "Failed to fetch page"
	case types.KindParse:
		return http.StatusInternalServerError, "Failed to parse page"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
