package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ncruces/zenity"
)

// DialogPrompter asks for the key in a native password dialog.
type DialogPrompter struct {
	Title string
}

// PromptKey implements Prompter.
func (p DialogPrompter) PromptKey(ctx context.Context) (string, error) {
	title := p.Title
	if title == "" {
		title = "Gemini API key"
	}
	_, key, err := zenity.Password(
		zenity.Title(title),
		zenity.Context(ctx),
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrDeclined
		}
		return "", fmt.Errorf("key dialog failed: %w", err)
	}
	return key, nil
}

// TerminalPrompter reads the key from a line of input. In defaults to a
// reader over os.Stdin; pass the same LineReader to every prompt that shares
// the terminal.
type TerminalPrompter struct {
	In  *LineReader
	Out io.Writer
}

// PromptKey implements Prompter. EOF or a blank line counts as declining.
func (p TerminalPrompter) PromptKey(ctx context.Context) (string, error) {
	in, out := p.In, p.Out
	if in == nil {
		in = NewLineReader(os.Stdin)
	}
	if out == nil {
		out = os.Stderr
	}

	fmt.Fprint(out, "This resolution needs a paid Gemini API key. Paste key (blank to cancel): ")

	line, err := in.ReadLine(ctx)
	if err != nil && err == ctx.Err() {
		return "", err
	}
	key := strings.TrimSpace(line)
	if key == "" {
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return "", ErrDeclined
	}
	return key, nil
}
