package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Decoder turns raw tool arguments into the request an Endpoint expects.
type Decoder func(*mcp.CallToolRequest) (any, error)

// DecodeArgs decodes the arguments object into a *T. Missing arguments
// yield a zero T.
func DecodeArgs[T any](req *mcp.CallToolRequest) (any, error) {
	v := new(T)
	if raw := req.Params.Arguments; len(raw) > 0 {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// RegisterMCPTool exposes ep as tool on srv. Each call runs with transport
// "mcp" and a fresh request id. Failures come back as tool results with
// IsError set so the client model can read them; a successful result is
// its JSON encoding as text.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, ep Endpoint, decode Decoder) {
	srv.AddTool(tool, func(ctx context.Context, call *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := decode(call)
		if err != nil {
			return toolError(fmt.Errorf("%s: invalid arguments: %w", tool.Name, err)), nil
		}
		ctx = WithRequestID(WithTransport(ctx, "mcp"), uuid.NewString())

		out, err := ep(ctx, req)
		if err != nil {
			return toolError(err), nil
		}
		text, err := json.Marshal(out)
		if err != nil {
			return toolError(fmt.Errorf("%s: encode result: %w", tool.Name, err)), nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(text)}}}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	res := &mcp.CallToolResult{}
	res.SetError(err)
	return res
}
