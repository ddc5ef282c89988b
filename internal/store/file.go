package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// FileSink は最新の抽出結果をJSON配列としてファイルに書き出します。
// 書き込みは一時ファイル経由のリネームで置き換えるため、読み手が途中の状態を見ることはありません。
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink は path に書き込む FileSink を生成します。
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, eris.New("file sink: path is required")
	}
	return &FileSink{path: path}, nil
}

// Save は entries でファイルを上書きします。
func (s *FileSink) Save(ctx context.Context, _ string, entries []types.ScholarshipEntry) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "file sink: save")
	}
	if entries == nil {
		entries = []types.ScholarshipEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "file sink: marshal")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "file sink: create temp")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return eris.Wrap(err, "file sink: write")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "file sink: close")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return eris.Wrapf(err, "file sink: rename to %s", s.path)
	}
	return nil
}

func (s *FileSink) Close() error { return nil }
