package urlutil

import (
	"net/url"
	"strings"
)

// Sanitize は、URLを構成要素に分解してから正規の形式で再シリアライズします。
// 前後の空白を除去し、スキームを小文字化し、パーセントエンコーディングを net/url の規則で揃えます。
// クエリ内の空白は net/url がそのまま残すため、ここで %20 に置き換えます。
// パースできない入力はそのまま返します (後段のバリデーションで弾かれます)。
func Sanitize(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	parsed.RawQuery = strings.ReplaceAll(parsed.RawQuery, " ", "%20")
	return strings.TrimSpace(parsed.String())
}
