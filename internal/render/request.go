package render

import (
	"fmt"
	"strings"

	"github.com/fpang/sketch-render/internal/assets"
)

// GenerationRequest is everything the remote capability needs to render a sketch.
type GenerationRequest struct {
	Image             *Image
	Prompt            string
	SystemInstruction string
	AspectRatio       AspectRatio
	ImageSize         ImageSize
}

// EditRequest asks the remote capability to modify an existing render.
type EditRequest struct {
	Image             *Image
	Command           string
	SystemInstruction string
}

// BuildGenerationRequest derives the prompt and structured parameters for a
// generation call. It is a pure function of its inputs.
func BuildGenerationRequest(src *Image, opts Options) (GenerationRequest, error) {
	if src.IsZero() {
		return GenerationRequest{}, fmt.Errorf("%w: no source image loaded", ErrInvalidInput)
	}

	style, ok := styleTable[opts.Style]
	if !ok {
		return GenerationRequest{}, invalidValue(KeyStyle, string(opts.Style))
	}
	lighting, ok := lightingTable[opts.Lighting]
	if !ok {
		return GenerationRequest{}, invalidValue(KeyLighting, string(opts.Lighting))
	}
	env, ok := environmentTable[opts.Environment]
	if !ok {
		return GenerationRequest{}, invalidValue(KeyEnvironment, string(opts.Environment))
	}
	aspect, ok := aspectTable[opts.AspectRatio]
	if !ok {
		return GenerationRequest{}, invalidValue(KeyAspectRatio, string(opts.AspectRatio))
	}
	size, ok := sizeTable[opts.ImageSize]
	if !ok {
		return GenerationRequest{}, invalidValue(KeyImageSize, string(opts.ImageSize))
	}

	prompt, err := assets.RenderGenerationPrompt(assets.GenerationPromptData{
		Style:           style.Prompt,
		PreserveDetails: opts.PreserveDetails,
		Lighting:        lighting.Prompt,
		Environment:     env.Prompt,
		Framing:         aspect.Prompt,
		Resolution:      size.Prompt,
		Instruction:     strings.TrimSpace(opts.CustomInstruction),
	})
	if err != nil {
		return GenerationRequest{}, fmt.Errorf("render generation prompt: %w", err)
	}

	return GenerationRequest{
		Image:             src,
		Prompt:            prompt,
		SystemInstruction: assets.GenerationSystemPrompt,
		AspectRatio:       opts.AspectRatio,
		ImageSize:         opts.ImageSize,
	}, nil
}

// BuildEditRequest wraps a prior render and a free-text command.
func BuildEditRequest(prior *Image, command string) (EditRequest, error) {
	if prior.IsZero() {
		return EditRequest{}, fmt.Errorf("%w: no rendered image to edit", ErrInvalidInput)
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return EditRequest{}, fmt.Errorf("%w: edit command is empty", ErrInvalidInput)
	}
	return EditRequest{
		Image:             prior,
		Command:           command,
		SystemInstruction: assets.EditSystemPrompt,
	}, nil
}
