package feed

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/shouni/go-scholarship-scan/pkg/extract"
	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// Entries は、タイトルまたは説明文にキーワードを含むフィードアイテムを抽出します。
// エントリのテキストはタイトル (空の場合は説明文) で、リンクは base に対して解決されます。
// 一致がない場合は空の (nilではない) スライスを返します。
func Entries(logger *zap.Logger, feed *gofeed.Feed, base *url.URL, keyword string) []types.ScholarshipEntry {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries := []types.ScholarshipEntry{}
	if feed == nil {
		return entries
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := collapse(item.Title)
		desc := plainText(item.Description)
		if !strings.Contains(strings.ToLower(title), keyword) && !strings.Contains(strings.ToLower(desc), keyword) {
			continue
		}

		text := title
		if text == "" {
			text = desc
		}
		entries = append(entries, types.NewScholarshipEntry(text, resolveItemLink(logger, item, base)))
	}
	return entries
}

// resolveItemLink はアイテムのリンクを解決します。リンクが空の場合は nil です。
func resolveItemLink(logger *zap.Logger, item *gofeed.Item, base *url.URL) *string {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		return nil
	}
	resolved, err := extract.ResolveURL(base, link)
	if err != nil {
		logger.Debug("アイテムのリンクを解決できないためURLなしとして扱います", zap.String("link", link), zap.Error(err))
		return nil
	}
	return &resolved
}

// plainText は説明文に含まれるマークアップを取り除き、空白を正規化します。
func plainText(s string) string {
	if !strings.ContainsRune(s, '<') {
		return collapse(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}
	return extract.FlattenText(doc.Selection)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
