package course

import "fmt"

// Processor turns raw course documents into a catalog entry plus content
// chunks ready for embedding.
type Processor struct {
	splitter *TextSplitter
}

// NewProcessor builds a processor; options tune the underlying splitter.
func NewProcessor(opts ...SplitterOption) *Processor {
	return &Processor{splitter: NewTextSplitter(opts...)}
}

// Process parses a course document and chunks its content. Chunk indexes are
// contiguous and zero-based across the whole course, so chunk IDs never
// collide. path only decorates parse errors.
//
// The first chunk of each lesson is prefixed "Lesson N content:"; later
// chunks additionally name the course, since retrieval may surface them
// without their lesson head. A course without lesson markers yields
// course-level chunks with no lesson number.
func (p *Processor) Process(text, path string) (*Course, []Chunk, error) {
	parsed, err := parseDocument(text, path)
	if err != nil {
		return nil, nil, err
	}

	c := parsed.course
	var chunks []Chunk
	index := 0

	if len(c.Lessons) == 0 {
		for _, piece := range p.splitter.Split(parsed.preamble) {
			chunks = append(chunks, Chunk{
				Content:     fmt.Sprintf("Course %s content: %s", c.Title, piece),
				CourseTitle: c.Title,
				Index:       index,
			})
			index++
		}
		return &c, chunks, nil
	}

	for li, lesson := range c.Lessons {
		for pi, piece := range p.splitter.Split(parsed.bodies[li]) {
			var content string
			if pi == 0 {
				content = fmt.Sprintf("Lesson %d content: %s", lesson.Number, piece)
			} else {
				content = fmt.Sprintf("Course %s Lesson %d content: %s", c.Title, lesson.Number, piece)
			}
			number := lesson.Number
			chunks = append(chunks, Chunk{
				Content:     content,
				CourseTitle: c.Title,
				Lesson:      &number,
				Index:       index,
			})
			index++
		}
	}
	return &c, chunks, nil
}
