package types

import (
	"errors"
	"fmt"
)

// ErrorKind は、パイプラインエラーの分類です。
type ErrorKind string

const (
	KindMissingInput ErrorKind = "MissingInput"
	KindInvalidURL   ErrorKind = "InvalidURL"
	KindFetch        ErrorKind = "FetchError"
	KindParse        ErrorKind = "ParseError"
	KindPersistence  ErrorKind = "PersistenceError"
)

// PipelineError は、パイプラインの各段階で発生する終端エラーです。
type PipelineError struct {
	Kind   ErrorKind
	URL    string
	Reason string // 診断用の補足 (例: バリデーションの理由コード)
	Err    error
}

func (e *PipelineError) Error() string {
	msg := string(e.Kind)
	if e.URL != "" {
		msg += fmt.Sprintf(" (URL: %s)", e.URL)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewError は PipelineError を生成します。
func NewError(kind ErrorKind, url, reason string, err error) *PipelineError {
	return &PipelineError{Kind: kind, URL: url, Reason: reason, Err: err}
}

// KindOf は、エラーチェーン中の PipelineError の種別を返します。
func KindOf(err error) (ErrorKind, bool) {
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Kind, true
	}
	return "", false
}

// IsKind は、err が指定した種別の PipelineError を含むかどうかを判定します。
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
