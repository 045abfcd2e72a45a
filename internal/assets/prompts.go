// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// --- Static prompts (no dynamic data) ---

// GenerationSystemPrompt frames the image model as an architectural renderer.
//
//go:embed prompts/generation-system.txt
var GenerationSystemPrompt string

// EditSystemPrompt constrains follow-up edits to the requested change only.
//
//go:embed prompts/edit-system.txt
var EditSystemPrompt string

// --- Dynamic prompt templates ---

//go:embed prompts/generation.txt
var generationTemplate string

// Pre-parsed templates for efficiency. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var generationPromptTmpl = template.Must(template.New("generation").Parse(generationTemplate))

// GenerationPromptData holds the option fragments injected into the generation template.
type GenerationPromptData struct {
	Style           string
	PreserveDetails int
	Lighting        string
	Environment     string
	Framing         string
	Resolution      string
	// Instruction is the user's free-text pre-render instruction, already trimmed.
	Instruction string
}

// RenderGenerationPrompt renders the generation prompt template.
func RenderGenerationPrompt(data GenerationPromptData) (string, error) {
	var buf bytes.Buffer
	if err := generationPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
