// Package store persists completed signup records to an append-only
// file, one comma-delimited line per record, terminated by a semicolon.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tavily-register/internal/application/port/output"
	"tavily-register/internal/domain/entity"
)

var _ output.ResultStorePort = (*FileStore)(nil)

var ErrMalformedRecord = errors.New("store: malformed record line")

// FileStore appends records under a mutex with O_APPEND, so concurrent
// sessions in one process never interleave lines. Existing content is
// never rewritten.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append writes one record line:
//
//	address,secret,token,2026-01-02T15:04:05Z;
func (s *FileStore) Append(rec entity.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(rec)); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// ReadAll parses every record in the file. Lines that do not parse are
// skipped; a store written only by Append never has any.
func (s *FileStore) ReadAll() ([]entity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	var records []entity.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		rec, err := ParseLine(scanner.Text())
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return records, nil
}

func FormatLine(rec entity.Record) string {
	return fmt.Sprintf("%s,%s,%s,%s;\n",
		rec.Address, rec.Secret, rec.Token,
		rec.CompletedAt.UTC().Format(time.RFC3339))
}

func ParseLine(line string) (entity.Record, error) {
	line = strings.TrimSpace(line)
	line = strings.TrimSuffix(line, ";")
	if line == "" {
		return entity.Record{}, ErrMalformedRecord
	}
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return entity.Record{}, ErrMalformedRecord
	}
	completedAt, err := time.Parse(time.RFC3339, parts[3])
	if err != nil {
		return entity.Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return entity.Record{
		Address:     parts[0],
		Secret:      parts[1],
		Token:       parts[2],
		CompletedAt: completedAt,
	}, nil
}
