// Package diagnostics persists failure snapshots to disk: one sanitized
// HTML document and one screenshot per captured phase failure, grouped
// by session.
package diagnostics

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"tavily-register/internal/application/port/output"
	"tavily-register/internal/domain/entity"
)

var _ output.DiagnosticsPort = (*DirSink)(nil)

const (
	maxHTMLSize   = 130_000
	maxShotWidth  = 1024
	shotQuality   = 75
	dirPermission = 0o755
)

// Tags and attributes stripped from saved documents. Scripts and styles
// dominate raw page size and carry nothing useful for failure analysis.
var (
	strippedTags = map[string]bool{
		"script": true, "style": true, "noscript": true, "svg": true,
		"iframe": true, "link": true, "meta": true, "title": true,
	}
	strippedAttrs = map[string]bool{
		"style": true, "srcset": true, "sizes": true, "loading": true,
		"decoding": true, "fetchpriority": true, "tabindex": true,
	}
)

type DirSink struct {
	dir string
	log *zap.Logger
}

func NewDirSink(dir string, log *zap.Logger) *DirSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &DirSink{dir: dir, log: log}
}

// Capture writes the diagnostic's HTML and screenshot under
// <dir>/<sessionID>/, named by phase and timestamp. Either part may be
// absent; an empty diagnostic still records its reason.
func (s *DirSink) Capture(sessionID string, phase entity.Phase, diag *entity.Diagnostic) error {
	if diag == nil {
		return nil
	}
	dir := filepath.Join(s.dir, sessionID)
	if err := os.MkdirAll(dir, dirPermission); err != nil {
		return fmt.Errorf("create diagnostics dir: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	base := fmt.Sprintf("%s_%s", phase, stamp)

	reason := diag.Reason
	if reason == "" {
		reason = "unspecified"
	}
	if err := os.WriteFile(filepath.Join(dir, base+".txt"), []byte(reason+"\n"), 0o600); err != nil {
		return fmt.Errorf("write diagnostic reason: %w", err)
	}

	if diag.HTML != "" {
		cleaned := Sanitize(diag.HTML)
		if err := os.WriteFile(filepath.Join(dir, base+".html"), []byte(cleaned), 0o600); err != nil {
			return fmt.Errorf("write diagnostic html: %w", err)
		}
	}

	if len(diag.Screenshot) > 0 {
		shot, err := compressScreenshot(diag.Screenshot)
		if err != nil {
			// Keep the original bytes rather than lose the evidence.
			s.log.Warn("screenshot compression failed", zap.Error(err))
			shot = diag.Screenshot
		}
		if err := os.WriteFile(filepath.Join(dir, base+".jpg"), shot, 0o600); err != nil {
			return fmt.Errorf("write diagnostic screenshot: %w", err)
		}
	}
	return nil
}

// Sanitize strips scripts, styles and presentation attributes from a
// captured document and truncates the result. Unparseable input is
// returned as-is; a broken page is exactly what a diagnostic is for.
func Sanitize(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return truncate(rawHTML)
	}
	body := findBody(doc)
	if body == nil {
		return truncate(rawHTML)
	}
	cleanNode(body)

	var sb strings.Builder
	if err := html.Render(&sb, body); err != nil {
		return truncate(rawHTML)
	}
	return truncate(sb.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func cleanNode(n *html.Node) {
	if n.Type == html.CommentNode {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	}
	if n.Type != html.ElementNode {
		return
	}
	if strippedTags[n.Data] {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	}

	var kept []html.Attribute
	for _, attr := range n.Attr {
		if strippedAttrs[attr.Key] || strings.HasPrefix(attr.Key, "on") {
			continue
		}
		kept = append(kept, attr)
	}
	n.Attr = kept

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		cleanNode(c)
		c = next
	}
}

func truncate(s string) string {
	if len(s) > maxHTMLSize {
		return s[:maxHTMLSize] + "\n<!-- truncated -->"
	}
	return s
}

// compressScreenshot re-encodes the capture as JPEG, downscaling wide
// captures so a failed batch run does not fill the disk.
func compressScreenshot(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	if img.Bounds().Dx() > maxShotWidth {
		img = imaging.Resize(img, maxShotWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: shotQuality}); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}
