package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shouni/go-scholarship-scan/pkg/extract"
	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// ======================================================================
// モック (Mock) の定義
// ======================================================================

// MockFetcher はテスト用の Fetcher インターフェースの実装です。
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (*types.FetchResult, error) {
	args := m.Called(ctx, url)
	if res := args.Get(0); res != nil {
		return res.(*types.FetchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func htmlResult(html string) *types.FetchResult {
	return &types.FetchResult{RawBody: []byte(html), StatusCode: 200}
}

// ======================================================================
// テスト関数
// ======================================================================

func TestNewPipeline(t *testing.T) {
	t.Run("success_with_valid_fetcher", func(t *testing.T) {
		p, err := NewPipeline(new(MockFetcher), nil)
		assert.NoError(t, err)
		assert.NotNil(t, p)
	})

	t.Run("error_with_nil_fetcher", func(t *testing.T) {
		p, err := NewPipeline(nil, extract.NewExtractor())
		assert.Error(t, err)
		assert.Nil(t, p)
		assert.Contains(t, err.Error(), "Fetcher cannot be nil")
	})
}

func TestInvoke(t *testing.T) {
	ctx := context.Background()

	t.Run("success_resolves_against_sanitized_url", func(t *testing.T) {
		fetcher := new(MockFetcher)
		fetched := htmlResult(`<ul><li>Merit Scholarship</li><li>Apply <a href="/apply">Scholarship</a></li><li>Parking</li></ul>`)
		// リダイレクト後のURLは解決の基準にしない
		fetched.FinalURL = "https://redirected.example.org/elsewhere/"
		fetcher.On("Fetch", mock.Anything, "https://example.edu/page").Return(fetched, nil).Once()

		p, err := NewPipeline(fetcher, nil)
		require.NoError(t, err)

		res, err := p.Invoke(ctx, nil, "  HTTPS://example.edu/page ")
		require.NoError(t, err)
		assert.Equal(t, "https://example.edu/page", res.URL)

		apply := "https://example.edu/apply"
		assert.Equal(t, []types.ScholarshipEntry{
			{Text: "Merit Scholarship"},
			{Text: "Apply Scholarship", URL: &apply},
		}, res.Entries)
		fetcher.AssertExpectations(t)
	})

	t.Run("empty_document_returns_empty_entries", func(t *testing.T) {
		fetcher := new(MockFetcher)
		fetcher.On("Fetch", mock.Anything, mock.Anything).Return(htmlResult(""), nil).Once()

		p, _ := NewPipeline(fetcher, nil)
		res, err := p.Invoke(ctx, nil, "https://example.edu/")
		require.NoError(t, err)
		assert.NotNil(t, res.Entries)
		assert.Empty(t, res.Entries)
	})

	t.Run("missing_input", func(t *testing.T) {
		fetcher := new(MockFetcher)
		p, _ := NewPipeline(fetcher, nil)

		res, err := p.Invoke(ctx, nil, "")
		assert.Nil(t, res)
		assert.True(t, types.IsKind(err, types.KindMissingInput))
		fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})

	t.Run("invalid_url_rejected_before_network", func(t *testing.T) {
		fetcher := new(MockFetcher)
		p, _ := NewPipeline(fetcher, nil)

		for _, in := range []string{"not a url", "ftp:/missing-slash", "http://intranet", "javascript:alert(1)"} {
			res, err := p.Invoke(ctx, nil, in)
			assert.Nil(t, res, in)
			require.Error(t, err, in)
			assert.True(t, types.IsKind(err, types.KindInvalidURL), in)
		}
		fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})

	t.Run("fetch_error_passed_through", func(t *testing.T) {
		fetcher := new(MockFetcher)
		cause := types.NewError(types.KindFetch, "https://example.edu/", "", errors.New("HTTPステータスコードエラー: 500"))
		fetcher.On("Fetch", mock.Anything, "https://example.edu/").Return(nil, cause).Once()

		p, _ := NewPipeline(fetcher, nil)
		res, err := p.Invoke(ctx, nil, "https://example.edu/")
		assert.Nil(t, res)
		assert.Same(t, cause, err)
		fetcher.AssertNumberOfCalls(t, "Fetch", 1)
	})

	t.Run("untyped_fetch_error_wrapped", func(t *testing.T) {
		fetcher := new(MockFetcher)
		fetcher.On("Fetch", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded).Once()

		p, _ := NewPipeline(fetcher, nil)
		_, err := p.Invoke(ctx, nil, "https://example.edu/")
		assert.True(t, types.IsKind(err, types.KindFetch))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("logs_go_to_injected_logger", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		fetcher := new(MockFetcher)
		fetcher.On("Fetch", mock.Anything, mock.Anything).Return(htmlResult(`<li>Scholarship</li>`), nil).Once()

		p, _ := NewPipeline(fetcher, nil)
		_, err := p.Invoke(ctx, zap.New(core).With(zap.String("request_id", "req-1")), "https://example.edu/")
		require.NoError(t, err)

		done := logs.FilterMessage("奨学金情報の抽出が完了しました").All()
		require.Len(t, done, 1)
		fields := done[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "https://example.edu/", fields["url"])
		assert.EqualValues(t, 1, fields["points"])
		assert.Equal(t, "utf-8", fields["encoding"])
	})
}
