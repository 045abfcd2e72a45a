package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/sketch-render/internal/auth"
)

// PromptLine asks label on out and returns the trimmed answer, or def when
// the user enters nothing. in is shared with any other prompt on the same
// terminal so no typed line is lost between them.
func PromptLine(ctx context.Context, in *auth.LineReader, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}

	input, err := in.ReadLine(ctx)
	if err != nil && strings.TrimSpace(input) == "" {
		if !errors.Is(err, io.EOF) {
			log.Warn().Err(err).Msg("Failed to read input, using default")
		}
		return def
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}
