package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/sketch-render/internal/filehandler"
	"github.com/fpang/sketch-render/internal/render"
	"github.com/fpang/sketch-render/internal/session"
)

// renderArgs are the inputs of render_sketch. Empty fields keep the
// session's current value.
type renderArgs struct {
	Path              string `json:"path" jsonschema:"absolute path of the sketch image"`
	Style             string `json:"style,omitempty" jsonschema:"render style id from list_options"`
	Lighting          string `json:"lighting,omitempty" jsonschema:"lighting id from list_options"`
	Environment       string `json:"environment,omitempty" jsonschema:"environment id from list_options"`
	AspectRatio       string `json:"aspectRatio,omitempty" jsonschema:"aspect ratio such as 1:1 or 16:9"`
	ImageSize         string `json:"imageSize,omitempty" jsonschema:"1K, 2K or 4K; 2K and 4K need a paid key"`
	PreserveDetails   int    `json:"preserveDetails,omitempty" jsonschema:"how closely to follow the sketch lines, 50-100"`
	CustomInstruction string `json:"customInstruction,omitempty" jsonschema:"additional instructions for the render"`
}

type editArgs struct {
	Command string `json:"command" jsonschema:"change to apply to the latest render"`
}

type saveArgs struct {
	Dir string `json:"dir,omitempty" jsonschema:"directory to save into; defaults to the export directory"`
}

type emptyArgs struct{}

// toolset binds the MCP tools to one session.
type toolset struct {
	session   *session.Controller
	exportDir string
}

func newToolset(ctrl *session.Controller, exportDir string) *toolset {
	return &toolset{session: ctrl, exportDir: exportDir}
}

func (t *toolset) register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_options",
		Description: "List the styles, lighting, environments, aspect ratios, resolutions and quick edit commands.",
	}, t.listOptions)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "render_sketch",
		Description: "Render an architectural sketch into a finished image. Returns the render.",
	}, t.renderSketch)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "edit_render",
		Description: "Apply a follow-up change to the latest render. Returns the new render.",
	}, t.editRender)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_render",
		Description: "Save the latest render to disk and return its path.",
	}, t.saveRender)
}

func (t *toolset) listOptions(ctx context.Context, req *mcp.CallToolRequest, _ emptyArgs) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(render.BuildCatalog(), "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return textResult(string(data)), nil, nil
}

func (t *toolset) renderSketch(ctx context.Context, req *mcp.CallToolRequest, args renderArgs) (*mcp.CallToolResult, any, error) {
	if args.Path == "" {
		return errorResult("path is required"), nil, nil
	}
	img, err := filehandler.LoadImageFile(args.Path)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	changes := []struct {
		key   render.OptionKey
		value string
	}{
		{render.KeyStyle, args.Style},
		{render.KeyLighting, args.Lighting},
		{render.KeyEnvironment, args.Environment},
		{render.KeyAspectRatio, args.AspectRatio},
		{render.KeyImageSize, args.ImageSize},
		{render.KeyCustomInstruction, args.CustomInstruction},
	}
	if args.PreserveDetails != 0 {
		if args.PreserveDetails < 50 || args.PreserveDetails > 100 {
			return errorResult("preserveDetails must be between 50 and 100"), nil, nil
		}
		changes = append(changes, struct {
			key   render.OptionKey
			value string
		}{render.KeyPreserveDetails, strconv.Itoa(args.PreserveDetails)})
	}
	opts := t.session.Options()
	for _, c := range changes {
		if c.value == "" {
			continue
		}
		if opts, err = opts.With(c.key, c.value); err != nil {
			return errorResult(err.Error()), nil, nil
		}
	}

	return t.settle(t.session.SubmitSketch(ctx, img, opts), "render")
}

func (t *toolset) editRender(ctx context.Context, req *mcp.CallToolRequest, args editArgs) (*mcp.CallToolResult, any, error) {
	return t.settle(t.session.SubmitEdit(ctx, args.Command), "edit")
}

func (t *toolset) saveRender(ctx context.Context, req *mcp.CallToolRequest, args saveArgs) (*mcp.CallToolResult, any, error) {
	snap := t.session.Snapshot()
	if snap.Result.IsZero() {
		return errorResult("no render to save"), nil, nil
	}
	dir := args.Dir
	if dir == "" {
		dir = t.exportDir
	}
	path, err := filehandler.WriteResult(dir, snap.Result, time.Now())
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return textResult(path), nil, nil
}

// settle turns a finished submission into a tool result. Submission errors
// and remote failures are tool errors, not protocol errors.
func (t *toolset) settle(err error, what string) (*mcp.CallToolResult, any, error) {
	switch {
	case errors.Is(err, session.ErrAuthorizationDeclined):
		return errorResult("this resolution needs a paid API key; the key prompt was declined"), nil, nil
	case err != nil:
		return errorResult(err.Error()), nil, nil
	}

	snap := t.session.Snapshot()
	if snap.LastError != "" {
		return errorResult(snap.LastError), nil, nil
	}
	if snap.Result.IsZero() {
		// The sketch was replaced while the call was running.
		return errorResult(what + " result was discarded"), nil, nil
	}

	opts := snap.RenderOptions()
	log.Info().Str("operation", what).Int("edits", snap.Edits).Msg("Tool call produced a render")
	summary := fmt.Sprintf("%s complete: style=%s lighting=%s environment=%s aspect=%s size=%s edits=%d",
		what, opts.Style, opts.Lighting, opts.Environment,
		opts.AspectRatio, opts.ImageSize, snap.Edits)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.ImageContent{Data: snap.Result.Data, MIMEType: snap.Result.MIMEType},
			&mcp.TextContent{Text: summary},
		},
	}, nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
