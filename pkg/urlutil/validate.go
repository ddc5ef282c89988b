package urlutil

import "regexp"

// Reason は、バリデーション失敗の理由コードです。診断用であり、分岐には使用しません。
type Reason string

const (
	ReasonNone   Reason = ""
	ReasonEmpty  Reason = "empty"
	ReasonScheme Reason = "malformed_scheme"
	ReasonHost   Reason = "malformed_host"
	ReasonPort   Reason = "malformed_port"
	ReasonPath   Reason = "malformed_path"
)

// Outcome は、バリデーション結果です。
type Outcome struct {
	Valid  bool
	Reason Reason
}

const (
	schemePart = `(?:http|ftp)s?://`
	credPart   = `(?:[^\s/@]+@)?`
	// DNS名 (有効なTLDラベル付き)、localhost、またはドット区切りIPv4
	hostPart = `(?:(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+(?:[a-z]{2,6}\.?|[a-z0-9-]{2,}\.?)|localhost|\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`
	portPart = `(?::\d+)?`
	pathPart = `(?:/?|[/?]\S+)`
)

var (
	absoluteURLPattern = regexp.MustCompile(`(?i)^` + schemePart + credPart + hostPart + portPart + pathPart + `$`)

	// 以下は失敗理由の特定にのみ使用する前方一致パターン
	schemePrefixPattern = regexp.MustCompile(`(?i)^` + schemePart)
	hostPrefixPattern   = regexp.MustCompile(`(?i)^` + schemePart + credPart + hostPart + `(?:[:/?]|$)`)
	portPrefixPattern   = regexp.MustCompile(`(?i)^` + schemePart + credPart + hostPart + portPart + `(?:[/?]|$)`)
)

// IsValid は、s が絶対URLの形式 scheme://[credentials@]host[:port][/path][?query] に一致するかを返します。
// ネットワークアクセスは行いません。
func IsValid(s string) bool {
	return absoluteURLPattern.MatchString(s)
}

// Validate は IsValid と同じ判定を行い、失敗時には理由コードを付けて返します。
func Validate(s string) Outcome {
	if IsValid(s) {
		return Outcome{Valid: true}
	}
	switch {
	case s == "":
		return Outcome{Reason: ReasonEmpty}
	case !schemePrefixPattern.MatchString(s):
		return Outcome{Reason: ReasonScheme}
	case !hostPrefixPattern.MatchString(s):
		return Outcome{Reason: ReasonHost}
	case !portPrefixPattern.MatchString(s):
		return Outcome{Reason: ReasonPort}
	default:
		return Outcome{Reason: ReasonPath}
	}
}
