package render

import (
	"errors"
	"strings"
	"testing"
)

var testSketch = &Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}

func TestBuildGenerationRequestTotalAndDeterministic(t *testing.T) {
	for _, style := range Styles {
		for _, lighting := range Lightings {
			for _, env := range Environments {
				opts := DefaultOptions()
				opts.Style = style
				opts.Lighting = lighting
				opts.Environment = env

				first, err := BuildGenerationRequest(testSketch, opts)
				if err != nil {
					t.Fatalf("BuildGenerationRequest(%s, %s, %s) error: %v", style, lighting, env, err)
				}
				if strings.TrimSpace(first.Prompt) == "" {
					t.Fatalf("empty prompt for %s/%s/%s", style, lighting, env)
				}

				second, err := BuildGenerationRequest(testSketch, opts)
				if err != nil {
					t.Fatalf("second call error: %v", err)
				}
				if first.Prompt != second.Prompt {
					t.Errorf("prompt not deterministic for %s/%s/%s", style, lighting, env)
				}
			}
		}
	}
}

func TestBuildGenerationRequestUsesEveryFragment(t *testing.T) {
	opts := DefaultOptions()
	opts.Style = StyleNightView
	opts.Lighting = LightingWarm
	opts.Environment = EnvironmentForest
	opts.PreserveDetails = 75
	opts.CustomInstruction = "  أضف مسبحاً  "

	req, err := BuildGenerationRequest(testSketch, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		styleTable[StyleNightView].Prompt,
		lightingTable[LightingWarm].Prompt,
		environmentTable[EnvironmentForest].Prompt,
		"75%",
		"Additional instructions from the architect: أضف مسبحاً",
	}
	for _, w := range want {
		if !strings.Contains(req.Prompt, w) {
			t.Errorf("prompt missing %q\nprompt: %s", w, req.Prompt)
		}
	}
	if req.Image != testSketch {
		t.Error("request should carry the source image")
	}
	if req.SystemInstruction == "" {
		t.Error("expected a system instruction")
	}
}

func TestBuildGenerationRequestOmitsBlankInstruction(t *testing.T) {
	opts := DefaultOptions()
	opts.CustomInstruction = "   "

	req, err := BuildGenerationRequest(testSketch, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(req.Prompt, "Additional instructions") {
		t.Errorf("blank instruction should not reach the prompt: %s", req.Prompt)
	}
}

func TestBuildGenerationRequestStructuredParams(t *testing.T) {
	opts := DefaultOptions()
	opts.AspectRatio = AspectCinematic
	opts.ImageSize = Size4K

	req, err := BuildGenerationRequest(testSketch, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.AspectRatio != AspectCinematic {
		t.Errorf("AspectRatio = %q, want %q", req.AspectRatio, AspectCinematic)
	}
	if req.ImageSize != Size4K {
		t.Errorf("ImageSize = %q, want %q", req.ImageSize, Size4K)
	}
}

func TestBuildGenerationRequestNoSource(t *testing.T) {
	tests := []struct {
		name string
		src  *Image
	}{
		{"nil", nil},
		{"empty", &Image{MIMEType: "image/png"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildGenerationRequest(tc.src, DefaultOptions())
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestBuildEditRequest(t *testing.T) {
	prior := &Image{Data: []byte("render"), MIMEType: "image/png"}

	tests := []struct {
		name    string
		prior   *Image
		command string
		wantErr bool
	}{
		{"valid", prior, "أضف نباتات", false},
		{"trimmed", prior, "  add people  ", false},
		{"no prior", nil, "أضف نباتات", true},
		{"empty prior", &Image{}, "أضف نباتات", true},
		{"empty command", prior, "", true},
		{"blank command", prior, " \t ", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := BuildEditRequest(tc.prior, tc.command)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Command != strings.TrimSpace(tc.command) {
				t.Errorf("Command = %q, want %q", req.Command, strings.TrimSpace(tc.command))
			}
			if req.Image != tc.prior {
				t.Error("edit request should carry the prior render")
			}
		})
	}
}
