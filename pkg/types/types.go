package types

// ScholarshipEntry は、奨学金に言及するリスト項目1件分の抽出結果です。
// URL が nil の場合、その項目には href 付きのリンクが存在しなかったことを表します。
type ScholarshipEntry struct {
	Text string  `json:"text"`
	URL  *string `json:"url"`
}

// NewScholarshipEntry は、テキストと（任意の）絶対URLからエントリを生成します。
func NewScholarshipEntry(text string, url *string) ScholarshipEntry {
	return ScholarshipEntry{Text: text, URL: url}
}

// FetchResult は、ページ取得の結果です。パース後は破棄されます。
type FetchResult struct {
	RawBody          []byte
	DeclaredEncoding string // Content-Type の charset パラメータ (未宣言なら空)
	ContentType      string
	FinalURL         string // リダイレクト後のURL (診断用)
	StatusCode       int
}

// PipelineResult は、1回のパイプライン実行の出力です。
// Entries は一致がなくても nil にはなりません。
type PipelineResult struct {
	URL     string             `json:"-"`
	Entries []ScholarshipEntry `json:"points"`
}

// NewPipelineResult は、空の Entries を持つ結果を生成します。
func NewPipelineResult(url string, entries []ScholarshipEntry) *PipelineResult {
	if entries == nil {
		entries = []ScholarshipEntry{}
	}
	return &PipelineResult{URL: url, Entries: entries}
}

// URLResult は、バッチ処理における1URL分の結果、またはその処理中に発生したエラーを保持します。
type URLResult struct {
	URL    string          // 処理対象のURL
	Result *PipelineResult // 成功時の抽出結果
	Error  error           // 処理中に発生したエラー
}
