package parser

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// Document は、走査可能なHTMLドキュメントツリーです。
type Document struct {
	doc      *goquery.Document
	encoding string
}

// Parse は、取得結果のバイト列をデコードし、寛容なHTMLパースでドキュメントツリーを構築します。
// 閉じタグの欠落や未知のエンティティなど構造上の不備はエラーにしません。
// エラーはバイトストリームの読み込み自体が失敗した場合のみ (ParseError) です。
func Parse(res *types.FetchResult) (*Document, error) {
	if res == nil {
		return nil, types.NewError(types.KindParse, "", "", fmt.Errorf("取得結果がnilです"))
	}

	enc, name := determineEncoding(res.RawBody, res.DeclaredEncoding)
	reader := transform.NewReader(bytes.NewReader(res.RawBody), enc.NewDecoder())

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, types.NewError(types.KindParse, res.FinalURL, "", fmt.Errorf("HTML解析に失敗しました (encoding: %s): %w", name, err))
	}

	return &Document{doc: doc, encoding: name}, nil
}

// determineEncoding は、宣言されたエンコーディングを優先し、
// 次に BOM や <meta charset> から推測します (有効なUTF-8であれば UTF-8 と判定されます)。
// charset.DetermineEncoding は手がかりがなければ windows-1252 を返すため、結果は常に非nilです。
func determineEncoding(body []byte, declared string) (encoding.Encoding, string) {
	if declared != "" {
		if enc, name := charset.Lookup(declared); enc != nil {
			return enc, name
		}
	}

	enc, name, _ := charset.DetermineEncoding(body, "")
	return enc, name
}

// Encoding は、デコードに使用したエンコーディング名を返します。
func (d *Document) Encoding() string {
	return d.encoding
}

// FindAll は、タグ名 tag を持つすべての要素をドキュメント順に返します。
func (d *Document) FindAll(tag string) *goquery.Selection {
	return d.doc.Find(tag)
}

// FirstDescendantWithAttr は、s の子孫のうち、タグ名 tag を持ち属性 attr が存在する最初の要素を返します。
// 属性値が空文字列でも「存在する」とみなします。
func FirstDescendantWithAttr(s *goquery.Selection, tag, attr string) (*goquery.Selection, bool) {
	found := s.Find(tag).FilterFunction(func(_ int, el *goquery.Selection) bool {
		_, ok := el.Attr(attr)
		return ok
	}).First()
	return found, found.Length() > 0
}
