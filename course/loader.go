package course

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/microcosm-cc/bluemonday"
)

// IsSupported reports whether path has a loadable course document extension.
func IsSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown", ".html", ".htm":
		return true
	}
	return false
}

// LoadFile reads a course document as plain text. Plain text is returned
// verbatim; markdown and HTML are reduced to their text so the parser sees
// the same line-oriented shape regardless of source format.
func LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return string(data), nil
	case ".md", ".markdown":
		return markdownToText(data), nil
	case ".html", ".htm":
		return htmlToText(data)
	default:
		return "", fmt.Errorf("unsupported document type %q", filepath.Ext(path))
	}
}

// markdownToText renders markdown and strips every tag, leaving the text
// with its line structure intact.
func markdownToText(data []byte) string {
	rendered := markdown.ToHTML(data, nil, nil)
	stripped := bluemonday.StrictPolicy().Sanitize(string(rendered))
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// htmlToText extracts readable text from block elements, one line per
// element. Script and style bodies never count as content.
func htmlToText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	var lines []string
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, pre").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		// No block structure at all; fall back to the flat text.
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(lines, "\n"), nil
}
