package course

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFilePlainText(t *testing.T) {
	content := "Course Title: Plain\n\nLesson 0: Intro\nBody text."
	path := writeTestFile(t, "course.txt", content)

	text, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, text)
}

func TestLoadFileMarkdown(t *testing.T) {
	content := `Course Title: Markdown Course
Course Link: https://example.com/md
Course Instructor: Ada Lovelace

Lesson 0: Formatting

Some *emphasized* text and a [link](https://example.com) here.
`
	path := writeTestFile(t, "course.md", content)

	text, err := LoadFile(path)
	require.NoError(t, err)

	assert.Contains(t, text, "Course Title: Markdown Course")
	assert.Contains(t, text, "Lesson 0: Formatting")
	assert.Contains(t, text, "Some emphasized text and a link here.")
	assert.NotContains(t, text, "*")
	assert.NotContains(t, text, "](")

	parsed, err := parseDocument(text, path)
	require.NoError(t, err)
	assert.Equal(t, "Markdown Course", parsed.course.Title)
	require.Len(t, parsed.course.Lessons, 1)
}

func TestLoadFileHTML(t *testing.T) {
	content := `<html><head>
<title>ignored</title>
<style>body { color: red; }</style>
</head><body>
<p>Course Title: Web Course</p>
<p>Course Instructor: Grace Hopper</p>
<p>Lesson 0: Basics</p>
<p>Hypertext is just text.</p>
<script>console.log("never content");</script>
</body></html>`
	path := writeTestFile(t, "course.html", content)

	text, err := LoadFile(path)
	require.NoError(t, err)

	assert.NotContains(t, text, "never content")
	assert.NotContains(t, text, "color: red")

	parsed, err := parseDocument(text, path)
	require.NoError(t, err)
	assert.Equal(t, "Web Course", parsed.course.Title)
	assert.Equal(t, "Grace Hopper", parsed.course.Instructor)
	require.Len(t, parsed.course.Lessons, 1)
	assert.Equal(t, "Hypertext is just text.", parsed.bodies[0])
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	path := writeTestFile(t, "course.pdf", "binary junk")

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported document type")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("notes.txt"))
	assert.True(t, IsSupported("notes.MD"))
	assert.True(t, IsSupported("page.html"))
	assert.True(t, IsSupported("page.htm"))
	assert.False(t, IsSupported("archive.zip"))
	assert.False(t, IsSupported("README"))
}
