package extract_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-scholarship-scan/pkg/extract"
	"github.com/shouni/go-scholarship-scan/pkg/parser"
	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// ======================================================================
// ヘルパー
// ======================================================================

func mustParse(t *testing.T, html string) *parser.Document {
	t.Helper()
	doc, err := parser.Parse(&types.FetchResult{RawBody: []byte(html)})
	require.NoError(t, err)
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func strPtr(s string) *string {
	return &s
}

// ======================================================================
// テスト関数
// ======================================================================

func TestNewExtractor(t *testing.T) {
	t.Run("default_keyword", func(t *testing.T) {
		assert.Equal(t, extract.DefaultKeyword, extract.NewExtractor().Keyword())
	})
	t.Run("custom_keyword_is_lowered", func(t *testing.T) {
		assert.Equal(t, "grant", extract.NewExtractor(extract.WithKeyword(" Grant ")).Keyword())
	})
	t.Run("empty_keyword_ignored", func(t *testing.T) {
		assert.Equal(t, extract.DefaultKeyword, extract.NewExtractor(extract.WithKeyword("  ")).Keyword())
	})
}

// TestExtract は Extractor の主要なメソッドをテストします。
func TestExtract(t *testing.T) {
	const base = "https://example.edu/page"

	testCases := []struct {
		name     string
		html     string
		base     string
		expected []types.ScholarshipEntry
	}{
		{
			name:     "relative_href_resolved",
			html:     `<ul><li>Apply for a Scholarship <a href="/apply">here</a></li></ul>`,
			expected: []types.ScholarshipEntry{{Text: "Apply for a Scholarship here", URL: strPtr("https://example.edu/apply")}},
		},
		{
			name:     "no_anchor_yields_nil_url",
			html:     `<ul><li>Merit Scholarship</li></ul>`,
			expected: []types.ScholarshipEntry{{Text: "Merit Scholarship", URL: nil}},
		},
		{
			name:     "anchor_without_href_yields_nil_url",
			html:     `<ul><li><a name="x">Merit Scholarship</a></li></ul>`,
			expected: []types.ScholarshipEntry{{Text: "Merit Scholarship", URL: nil}},
		},
		{
			name:     "absolute_href_unchanged",
			html:     `<ul><li>Scholarship <a href="https://other.org/x">link</a></li></ul>`,
			expected: []types.ScholarshipEntry{{Text: "Scholarship link", URL: strPtr("https://other.org/x")}},
		},
		{
			name:     "empty_href_resolves_to_base",
			html:     `<ul><li><a href="">Scholarship page</a></li></ul>`,
			expected: []types.ScholarshipEntry{{Text: "Scholarship page", URL: strPtr(base)}},
		},
		{
			name:     "scheme_relative_href",
			html:     `<ul><li><a href="//cdn.example.org/s.pdf">Scholarship PDF</a></li></ul>`,
			expected: []types.ScholarshipEntry{{Text: "Scholarship PDF", URL: strPtr("https://cdn.example.org/s.pdf")}},
		},
		{
			name:     "path_relative_href",
			html:     `<ul><li><a href="awards/merit.html">Scholarship</a></li></ul>`,
			expected: []types.ScholarshipEntry{{Text: "Scholarship", URL: strPtr("https://example.edu/awards/merit.html")}},
		},
		{
			name:     "dot_segments_removed",
			html:     `<ul><li><a href="../funding/./list">Scholarship</a></li></ul>`,
			base:     "https://example.edu/a/b/page",
			expected: []types.ScholarshipEntry{{Text: "Scholarship", URL: strPtr("https://example.edu/a/funding/list")}},
		},
		{
			name:     "query_only_href",
			html:     `<ul><li><a href="?id=7">Scholarship 7</a></li></ul>`,
			expected: []types.ScholarshipEntry{{Text: "Scholarship 7", URL: strPtr("https://example.edu/page?id=7")}},
		},
		{
			name:     "fragment_only_href",
			html:     `<ul><li><a href="#deadline">Scholarship deadline</a></li></ul>`,
			expected: []types.ScholarshipEntry{{Text: "Scholarship deadline", URL: strPtr("https://example.edu/page#deadline")}},
		},
		{
			name: "first_href_anchor_in_document_order",
			html: `<ul><li>Scholarship
				<a>no href</a>
				<span><em><a href="/deep">deep</a></em></span>
				<a href="/second">second</a>
			</li></ul>`,
			expected: []types.ScholarshipEntry{{Text: "Scholarship no href deep second", URL: strPtr("https://example.edu/deep")}},
		},
		{
			name:     "text_flattened_and_collapsed",
			html:     "<ul><li>\n\t  Need-based<b>Scholarship</b>\n\n   for   <i>2025</i>  </li></ul>",
			expected: []types.ScholarshipEntry{{Text: "Need-based Scholarship for 2025", URL: nil}},
		},
		{
			name: "substring_match_without_word_boundary",
			html: `<ul><li>SCHOLARSHIPS available</li><li>nonscholarship-related</li><li>scholar ship</li></ul>`,
			expected: []types.ScholarshipEntry{
				{Text: "SCHOLARSHIPS available", URL: nil},
				{Text: "nonscholarship-related", URL: nil},
			},
		},
		{
			name: "duplicates_kept_in_document_order",
			html: `<ul><li>Scholarship A</li><li>Other</li><li>Scholarship A</li></ul><ol><li>scholarship B</li></ol>`,
			expected: []types.ScholarshipEntry{
				{Text: "Scholarship A", URL: nil},
				{Text: "Scholarship A", URL: nil},
				{Text: "scholarship B", URL: nil},
			},
		},
		{
			name: "nested_li_evaluated_independently",
			html: `<ul><li>Funding <ul><li>Merit Scholarship <a href="/merit">apply</a></li></ul></li></ul>`,
			expected: []types.ScholarshipEntry{
				{Text: "Funding Merit Scholarship apply", URL: strPtr("https://example.edu/merit")},
				{Text: "Merit Scholarship apply", URL: strPtr("https://example.edu/merit")},
			},
		},
		{
			name:     "malformed_markup_tolerated",
			html:     `<ul><li>Scholarship one<li>Scholarship <a href="/two">two`,
			expected: []types.ScholarshipEntry{{Text: "Scholarship one", URL: nil}, {Text: "Scholarship two", URL: strPtr("https://example.edu/two")}},
		},
		{
			name:     "unparseable_href_yields_nil_url",
			html:     `<ul><li><a href="http://[::1">Scholarship</a></li></ul>`,
			expected: []types.ScholarshipEntry{{Text: "Scholarship", URL: nil}},
		},
		{
			name:     "no_scholarship_items",
			html:     `<ul><li>Tuition</li><li>Housing</li></ul>`,
			expected: []types.ScholarshipEntry{},
		},
		{
			name:     "empty_document",
			html:     ``,
			expected: []types.ScholarshipEntry{},
		},
	}

	extractor := extract.NewExtractor()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := base
			if tc.base != "" {
				b = tc.base
			}
			actual := extractor.Extract(nil, mustParse(t, tc.html), mustURL(t, b))

			require.NotNil(t, actual, "結果はnilではなく空スライスであるべきです")
			assert.Equal(t, tc.expected, actual)
		})
	}
}

// TestExtract_CountsMatchingItems は N件の一致とM件の不一致から N件だけが返ることを検証します。
func TestExtract_CountsMatchingItems(t *testing.T) {
	html := `<ul>
		<li>Scholarship 1</li><li>Library</li>
		<li>scholarship 2</li><li>Parking</li><li>Dining</li>
		<li>Graduate SCHOLARSHIP 3</li>
	</ul>`

	actual := extract.NewExtractor().Extract(nil, mustParse(t, html), mustURL(t, "https://example.edu/"))
	require.Len(t, actual, 3)
	assert.Equal(t, "Scholarship 1", actual[0].Text)
	assert.Equal(t, "scholarship 2", actual[1].Text)
	assert.Equal(t, "Graduate SCHOLARSHIP 3", actual[2].Text)
}

func TestExtract_CustomKeyword(t *testing.T) {
	html := `<ul><li>Research Grant</li><li>Merit Scholarship</li></ul>`
	actual := extract.NewExtractor(extract.WithKeyword("GRANT")).Extract(nil, mustParse(t, html), mustURL(t, "https://example.edu/"))
	assert.Equal(t, []types.ScholarshipEntry{{Text: "Research Grant"}}, actual)
}

func TestExtract_NilDocument(t *testing.T) {
	actual := extract.NewExtractor().Extract(nil, nil, mustURL(t, "https://example.edu/"))
	assert.NotNil(t, actual)
	assert.Empty(t, actual)
}

func TestResolveURL(t *testing.T) {
	base := mustURL(t, "https://example.edu/page")

	tests := []struct {
		href     string
		expected string
	}{
		{"/apply", "https://example.edu/apply"},
		{"https://other.org/x", "https://other.org/x"},
		{"", "https://example.edu/page"},
		{"  /padded  ", "https://example.edu/padded"},
		{"//other.org/y", "https://other.org/y"},
		{"mailto:aid@example.edu", "mailto:aid@example.edu"},
	}
	for _, tt := range tests {
		actual, err := extract.ResolveURL(base, tt.href)
		require.NoError(t, err, tt.href)
		assert.Equal(t, tt.expected, actual, tt.href)
	}

	_, err := extract.ResolveURL(nil, "/apply")
	assert.Error(t, err)
}
