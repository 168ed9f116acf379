// CLAUDE:SUMMARY MCP tool registration: formats, job listing and ad-hoc text translation.
package workbench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tradbench/docpipe"
)

// RegisterMCP registers workbench tools on an MCP server.
func (wb *Workbench) RegisterMCP(srv *mcp.Server) {
	wb.registerFormatsTool(srv)
	wb.registerJobsTool(srv)
	wb.registerTranslateTextTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// addTool wires a decode+handle pair into the SDK's tool callback shape.
func addTool[Req any](srv *mcp.Server, tool *mcp.Tool, handle func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		resp, err := handle(ctx, &r)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func (wb *Workbench) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tradbench_formats",
		Description: "List the document formats the workbench can decompose and reassemble.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	addTool(srv, tool, func(_ context.Context, _ *struct{}) (any, error) {
		return map[string]any{"formats": docpipe.SupportedFormats()}, nil
	})
}

type jobsReq struct{}

type jobSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Segments  int       `json:"segments"`
	PageCount int       `json:"pageCount,omitempty"`
}

func (wb *Workbench) registerJobsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tradbench_jobs",
		Description: "List translation jobs with their status and progress.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	addTool(srv, tool, func(_ context.Context, _ *jobsReq) (any, error) {
		jobs := wb.Jobs()
		out := make([]jobSummary, len(jobs))
		for i, j := range jobs {
			out[i] = jobSummary{
				ID:        j.ID,
				Name:      j.Name,
				Status:    j.Status,
				Progress:  j.Progress,
				Segments:  len(j.Segments),
				PageCount: j.PageCount,
			}
		}
		return map[string]any{"jobs": out}, nil
	})
}

type translateTextReq struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

func (wb *Workbench) registerTranslateTextTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tradbench_translate_text",
		Description: "Translate a short text fragment without creating a job.",
		InputSchema: inputSchema(map[string]any{
			"text":        map[string]any{"type": "string", "description": "Text to translate"},
			"target_lang": map[string]any{"type": "string", "description": "Target language name or code"},
		}, []string{"text", "target_lang"}),
	}
	addTool(srv, tool, func(ctx context.Context, r *translateTextReq) (any, error) {
		translated, err := wb.cfg.Translator.Translate(ctx, r.Text, r.TargetLang)
		if err != nil {
			return nil, err
		}
		return map[string]any{"translated": translated}, nil
	})
}
