package diagnostics

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tavily-register/internal/domain/entity"
)

func TestCaptureWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir, nil)

	shot := encodeTestImage(t, 100, 60)
	err := sink.Capture("session-1", entity.PhaseRegistering, &entity.Diagnostic{
		Reason:     "no post-signup confirmation",
		HTML:       `<html><head><script>evil()</script></head><body><form><input name="email"></form></body></html>`,
		Screenshot: shot,
	})
	require.NoError(t, err)

	files, err := os.ReadDir(filepath.Join(dir, "session-1"))
	require.NoError(t, err)
	require.Len(t, files, 3)

	var sawHTML, sawShot, sawReason bool
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f.Name(), "registering_"))
		data, err := os.ReadFile(filepath.Join(dir, "session-1", f.Name()))
		require.NoError(t, err)
		switch filepath.Ext(f.Name()) {
		case ".html":
			sawHTML = true
			assert.NotContains(t, string(data), "script")
			assert.Contains(t, string(data), `name="email"`)
		case ".jpg":
			sawShot = true
			assert.NotEmpty(t, data)
		case ".txt":
			sawReason = true
			assert.Equal(t, "no post-signup confirmation\n", string(data))
		}
	}
	assert.True(t, sawHTML)
	assert.True(t, sawShot)
	assert.True(t, sawReason)
}

func TestCaptureNilDiagnostic(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir, nil)
	require.NoError(t, sink.Capture("s", entity.PhaseRegistering, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCaptureReasonOnly(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir, nil)
	require.NoError(t, sink.Capture("s", entity.PhaseLoggingIn, &entity.Diagnostic{Reason: "cancelled"}))

	files, err := os.ReadDir(filepath.Join(dir, "s"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ".txt", filepath.Ext(files[0].Name()))
}

func TestSanitize(t *testing.T) {
	cleaned := Sanitize(`<html><body>
		<style>.x{}</style>
		<div style="color: red" onclick="x()" data-kept="yes">hello</div>
	</body></html>`)

	assert.NotContains(t, cleaned, "<style>")
	assert.NotContains(t, cleaned, "color: red")
	assert.NotContains(t, cleaned, "onclick")
	assert.Contains(t, cleaned, `data-kept="yes"`)
	assert.Contains(t, cleaned, "hello")
}

func TestSanitizeTruncatesHugeDocuments(t *testing.T) {
	huge := "<body>" + strings.Repeat("<div>x</div>", 30_000) + "</body>"
	cleaned := Sanitize(huge)
	assert.LessOrEqual(t, len(cleaned), maxHTMLSize+len("\n<!-- truncated -->"))
	assert.Contains(t, cleaned, "truncated")
}

func TestCompressScreenshotDownscales(t *testing.T) {
	wide := encodeTestImage(t, maxShotWidth*2, 200)
	out, err := compressScreenshot(wide)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, maxShotWidth, img.Bounds().Dx())
}

func encodeTestImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}
