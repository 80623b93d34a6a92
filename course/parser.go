package course

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports a course document that could not be parsed.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("parse course document: %s", e.Reason)
}

var (
	titleLineRe      = regexp.MustCompile(`(?i)^course title:\s*(.*)$`)
	linkLineRe       = regexp.MustCompile(`(?i)^course link:\s*(.*)$`)
	instructorLineRe = regexp.MustCompile(`(?i)^course instructor:\s*(.*)$`)
	lessonMarkerRe   = regexp.MustCompile(`(?i)^lesson\s+(\d+):\s*(.+)$`)
	lessonLinkRe     = regexp.MustCompile(`(?i)^lesson link:\s*(.*)$`)
)

// parsedDocument is the raw structure of a course file before chunking.
// bodies runs parallel to course.Lessons; preamble is text between the header
// and the first lesson marker.
type parsedDocument struct {
	course   Course
	preamble string
	bodies   []string
}

// parseDocument reads the course header and splits the remaining text into
// per-lesson bodies. The title line is required; link and instructor are
// optional. path only decorates errors.
func parseDocument(text, path string) (*parsedDocument, error) {
	lines := strings.Split(text, "\n")

	// Skip leading blank lines before the header.
	pos := 0
	for pos < len(lines) && strings.TrimSpace(lines[pos]) == "" {
		pos++
	}
	if pos >= len(lines) {
		return nil, &ParseError{Path: path, Reason: "document is empty"}
	}

	m := titleLineRe.FindStringSubmatch(strings.TrimSpace(lines[pos]))
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return nil, &ParseError{Path: path, Reason: "missing course title"}
	}
	doc := &parsedDocument{course: Course{Title: strings.TrimSpace(m[1])}}
	pos++

	// Link and instructor may follow in either order.
	for pos < len(lines) {
		line := strings.TrimSpace(lines[pos])
		if m := linkLineRe.FindStringSubmatch(line); m != nil {
			doc.course.Link = strings.TrimSpace(m[1])
			pos++
			continue
		}
		if m := instructorLineRe.FindStringSubmatch(line); m != nil {
			doc.course.Instructor = strings.TrimSpace(m[1])
			pos++
			continue
		}
		break
	}

	var preamble []string
	current := -1
	afterMarker := false
	for ; pos < len(lines); pos++ {
		line := lines[pos]
		trimmed := strings.TrimSpace(line)

		if m := lessonMarkerRe.FindStringSubmatch(trimmed); m != nil {
			number, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, &ParseError{Path: path, Reason: fmt.Sprintf("bad lesson number %q", m[1])}
			}
			doc.course.Lessons = append(doc.course.Lessons, Lesson{
				Number: number,
				Title:  strings.TrimSpace(m[2]),
			})
			doc.bodies = append(doc.bodies, "")
			current = len(doc.course.Lessons) - 1
			afterMarker = true
			continue
		}

		// A lesson link is only recognized on the line right after its marker.
		if afterMarker {
			afterMarker = false
			if m := lessonLinkRe.FindStringSubmatch(trimmed); m != nil {
				doc.course.Lessons[current].Link = strings.TrimSpace(m[1])
				continue
			}
		}

		if current == -1 {
			preamble = append(preamble, line)
		} else {
			doc.bodies[current] += line + "\n"
		}
	}

	doc.preamble = strings.TrimSpace(strings.Join(preamble, "\n"))
	for i := range doc.bodies {
		doc.bodies[i] = strings.TrimSpace(doc.bodies[i])
	}
	return doc, nil
}
