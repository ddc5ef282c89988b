package extract

import (
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/shouni/go-scholarship-scan/pkg/parser"
	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	// DefaultKeyword は、リスト項目の判定に使用するキーワードです (大文字小文字を区別しない部分一致)。
	DefaultKeyword = "scholarship"

	listItemTag = "li"
	anchorTag   = "a"
	hrefAttr    = "href"
)

// Extractor は、パース済みドキュメントから奨学金に関するリスト項目を抽出します。
// 状態を持たないため、複数のゴルーチンから同時に利用できます。
type Extractor struct {
	keyword string
}

// Option は Extractor の設定を行うための関数型です。
type Option func(*Extractor)

// WithKeyword は判定キーワードを差し替えます。空文字列は無視されます。
func WithKeyword(keyword string) Option {
	return func(e *Extractor) {
		if k := strings.TrimSpace(keyword); k != "" {
			e.keyword = strings.ToLower(k)
		}
	}
}

// NewExtractor は、新しいExtractorのインスタンスを生成します。
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{keyword: DefaultKeyword}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Keyword は判定に使用しているキーワードを返します。
func (e *Extractor) Keyword() string {
	return e.keyword
}

// ----------------------------------------------------------------------
// メイン関数
// ----------------------------------------------------------------------

// Extract は、すべての li 要素をドキュメント順に走査し、キーワードを含む項目を抽出します。
// 入れ子の li もそれぞれ独立して評価されます。重複除去や並べ替えは行いません。
// 一致がない場合は空の (nilではない) スライスを返します。この処理は失敗しません。
func (e *Extractor) Extract(logger *zap.Logger, doc *parser.Document, base *url.URL) []types.ScholarshipEntry {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries := []types.ScholarshipEntry{}
	if doc == nil {
		return entries
	}

	items := doc.FindAll(listItemTag)
	items.Each(func(i int, s *goquery.Selection) {
		text := FlattenText(s)
		if !strings.Contains(strings.ToLower(text), e.keyword) {
			return
		}

		entries = append(entries, types.NewScholarshipEntry(text, e.resolveLink(logger, s, base)))
	})

	logger.Debug("リスト項目の抽出が完了しました",
		zap.Int("items", items.Length()),
		zap.Int("matched", len(entries)),
	)
	return entries
}

// resolveLink は、項目内で最初に現れる href 付きアンカーのリンクを base に対して解決します。
// アンカーが存在しない場合は nil を返します。
func (e *Extractor) resolveLink(logger *zap.Logger, s *goquery.Selection, base *url.URL) *string {
	anchor, ok := parser.FirstDescendantWithAttr(s, anchorTag, hrefAttr)
	if !ok {
		return nil
	}
	href, _ := anchor.Attr(hrefAttr)

	resolved, err := ResolveURL(base, href)
	if err != nil {
		logger.Debug("hrefを解決できないためURLなしとして扱います", zap.String("href", href), zap.Error(err))
		return nil
	}
	return &resolved
}

// ----------------------------------------------------------------------
// ヘルパー関数
// ----------------------------------------------------------------------

// FlattenText は、選択要素の子孫テキストノードを半角スペース区切りで連結し、
// 前後の空白を除去したうえで連続する空白を1つにまとめます。
func FlattenText(s *goquery.Selection) string {
	var runs []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			runs = append(runs, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	for _, n := range s.Nodes {
		visit(n)
	}
	return strings.Join(strings.Fields(strings.Join(runs, " ")), " ")
}

// ResolveURL は、RFC 3986 の参照解決規則で href を base に対して解決します。
// 絶対URLはそのまま、空文字列は base 自身になります。
// href の前後の空白は HTML の属性値として無視します。
func ResolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	if base == nil {
		return "", errors.New("base URLが指定されていません")
	}
	return base.ResolveReference(ref).String(), nil
}
