package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
)

const maxLineBytes = 16 << 20

// FileSource reads a .json array or a .jsonl file. A missing file is an
// empty corpus. Only JSONL files accept appends.
type FileSource struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewFileSource(path string) *FileSource {
	return &FileSource{
		path:   path,
		logger: slog.Default().With("component", "file-source", "path", path),
	}
}

func (s *FileSource) Path() string { return s.path }

func (s *FileSource) jsonLines() bool {
	return strings.EqualFold(filepath.Ext(s.path), ".jsonl")
}

// Load reads every record in file order.
func (s *FileSource) Load(ctx context.Context) ([]ingestion.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("documents file missing, treating as empty corpus")
		return []ingestion.RawRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading documents file %s: %w", s.path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.jsonLines() {
		return decodeLines(data)
	}
	var records []ingestion.RawRecord
	if len(bytes.TrimSpace(data)) == 0 {
		return []ingestion.RawRecord{}, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding documents file %s: %w", s.path, err)
	}
	for i, rec := range records {
		if rec == nil {
			records[i] = ingestion.RawRecord{}
		}
	}
	return records, nil
}

func decodeLines(data []byte) ([]ingestion.RawRecord, error) {
	records := make([]ingestion.RawRecord, 0, bytes.Count(data, []byte{'\n'})+1)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec ingestion.RawRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding line %d: %w", line, err)
		}
		if rec == nil {
			rec = ingestion.RawRecord{}
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning documents: %w", err)
	}
	return records, nil
}

// Append writes rec as one JSONL line and fsyncs the file.
func (s *FileSource) Append(ctx context.Context, rec ingestion.RawRecord) error {
	if !s.jsonLines() {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "appending requires a .jsonl documents file, got %s", s.path)
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating documents dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening documents file: %w", err)
	}
	terminated, err := endsWithNewline(f)
	if err != nil {
		f.Close()
		return err
	}
	if !terminated {
		line = append([]byte{'\n'}, line...)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("appending record: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing documents file: %w", err)
	}
	return f.Close()
}

// endsWithNewline reports whether f is empty or its last byte is '\n'.
// A hand-edited file without the final newline would otherwise have the
// next record glued onto its last line.
func endsWithNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat documents file: %w", err)
	}
	if info.Size() == 0 {
		return true, nil
	}
	var last [1]byte
	if _, err := f.ReadAt(last[:], info.Size()-1); err != nil {
		return false, fmt.Errorf("reading documents file tail: %w", err)
	}
	return last[0] == '\n', nil
}
