package store_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tavily-register/internal/domain/entity"
	"tavily-register/internal/infrastructure/store"
)

func testRecord(n int) entity.Record {
	return entity.Record{
		Address:     fmt.Sprintf("user-abc%d@2925.com", n),
		Secret:      "S3cret!pass",
		Token:       fmt.Sprintf("tvly-dev-key%012d", n),
		CompletedAt: time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC),
	}
}

func TestAppendFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.md")
	s := store.NewFileStore(path)

	require.NoError(t, s.Append(testRecord(1)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "user-abc1@2925.com,S3cret!pass,tvly-dev-key000000000001,2026-08-24T10:30:00Z;\n", string(data))
}

func TestAppendIsAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.md")
	s := store.NewFileStore(path)

	require.NoError(t, s.Append(testRecord(1)))
	require.NoError(t, s.Append(testRecord(2)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "user-abc1@2925.com")
	assert.Contains(t, lines[1], "user-abc2@2925.com")
}

func TestAppendCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "keys.md")
	s := store.NewFileStore(path)
	require.NoError(t, s.Append(testRecord(1)))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.md")
	s := store.NewFileStore(path)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Append(testRecord(i)))
		}()
	}
	wg.Wait()

	records, err := s.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, n)
}

func TestReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.md")
	s := store.NewFileStore(path)

	// No file yet: empty, not an error.
	records, err := s.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)

	want := testRecord(7)
	require.NoError(t, s.Append(want))

	records, err = s.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, want, records[0])
}

func TestParseLine(t *testing.T) {
	rec, err := store.ParseLine("a@b.com,pw,tvly-dev-abc123456789,2026-08-24T10:30:00Z;")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", rec.Address)
	assert.Equal(t, "pw", rec.Secret)
	assert.Equal(t, "tvly-dev-abc123456789", rec.Token)
	assert.Equal(t, 2026, rec.CompletedAt.Year())

	for _, bad := range []string{"", "only,three,fields;", "a,b,c,not-a-time;"} {
		_, err := store.ParseLine(bad)
		assert.ErrorIs(t, err, store.ErrMalformedRecord, "line %q", bad)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	want := testRecord(3)
	got, err := store.ParseLine(store.FormatLine(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
