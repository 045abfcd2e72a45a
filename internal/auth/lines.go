package auth

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// LineReader hands out input lines to successive prompts. One goroutine owns
// the underlying reader, so a prompt abandoned on cancellation leaves its
// line for the next caller and never strands a second reader.
type LineReader struct {
	r     io.Reader
	once  sync.Once
	lines chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewLineReader wraps r. Wrap each stream once and share the result.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r, lines: make(chan lineResult)}
}

// ReadLine returns the next line including its newline. The final line of a
// stream without a trailing newline is returned together with io.EOF.
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	l.once.Do(func() { go l.pump() })
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}

func (l *LineReader) pump() {
	defer close(l.lines)
	br := bufio.NewReader(l.r)
	for {
		line, err := br.ReadString('\n')
		l.lines <- lineResult{line, err}
		if err != nil {
			return
		}
	}
}
