package formfill

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/formfill/field"
	"github.com/hazyhaar/formfill/kit"
)

// ReconcileRequest asks for mappings of a scraped form. When Response is
// nil the profile and the model produce one.
type ReconcileRequest struct {
	Descriptors []field.Descriptor `json:"descriptors"`
	Response    *field.Response    `json:"response,omitempty"`
	ProfileID   string             `json:"profile_id,omitempty"`
}

// FillHTMLRequest carries a page to fill offline.
type FillHTMLRequest struct {
	HTML      string          `json:"html"`
	ProfileID string          `json:"profile_id,omitempty"`
	Response  *field.Response `json:"response,omitempty"`
}

// FillHTMLResult is the pass and the filled page.
type FillHTMLResult struct {
	Pass *Pass  `json:"pass"`
	HTML string `json:"html"`
}

// FillURLRequest names a live page to fill.
type FillURLRequest struct {
	URL       string `json:"url"`
	ProfileID string `json:"profile_id,omitempty"`
}

// ProfilesRequest lists profiles, or loads one when ID is set.
type ProfilesRequest struct {
	ID string `json:"id,omitempty"`
}

func (s *Service) reconcileEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*ReconcileRequest)
	if r.Response != nil {
		return s.Reconcile(ctx, r.Descriptors, *r.Response)
	}
	return s.Plan(ctx, r.Descriptors, r.ProfileID)
}

func (s *Service) fillHTMLEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*FillHTMLRequest)
	if strings.TrimSpace(r.HTML) == "" {
		return nil, errors.New("formfill: empty html")
	}
	var out bytes.Buffer
	p, err := s.FillHTML(ctx, strings.NewReader(r.HTML), &out, r.ProfileID, r.Response)
	if err != nil {
		return nil, err
	}
	return &FillHTMLResult{Pass: p, HTML: out.String()}, nil
}

func (s *Service) fillURLEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*FillURLRequest)
	return s.FillURL(ctx, r.URL, r.ProfileID)
}

func (s *Service) profilesEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*ProfilesRequest)
	if s.profiles == nil {
		return nil, ErrNoProfile
	}
	if r.ID != "" {
		return s.profiles.Get(ctx, r.ID)
	}
	return s.profiles.List(ctx)
}

// RegisterMCP registers the formfill tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	descriptors := map[string]any{
		"type":        "array",
		"description": "Form controls: id, kind, label, name, options…",
		"items":       map[string]any{"type": "object"},
	}
	response := map[string]any{
		"type":        "object",
		"description": "Flat key/value answer to reconcile as is; skips the model",
	}
	profileID := map[string]any{
		"type":        "string",
		"description": "Profile to use; empty picks the most recent",
	}

	s.register(srv, &mcp.Tool{
		Name:        "formfill_reconcile",
		Description: "Map values onto scraped form fields and coerce them to each field's kind. Nothing is filled.",
		InputSchema: inputSchema(map[string]any{
			"descriptors": descriptors,
			"response":    response,
			"profile_id":  profileID,
		}, []string{"descriptors"}),
	}, s.reconcileEndpoint, kit.DecodeArgs[ReconcileRequest])

	s.register(srv, &mcp.Tool{
		Name:        "formfill_fill_html",
		Description: "Fill the form of an HTML page offline and return the filled page with the fill report.",
		InputSchema: inputSchema(map[string]any{
			"html":       map[string]any{"type": "string", "description": "Page source"},
			"response":   response,
			"profile_id": profileID,
		}, []string{"html"}),
	}, s.fillHTMLEndpoint, kit.DecodeArgs[FillHTMLRequest])

	s.register(srv, &mcp.Tool{
		Name:        "formfill_fill_url",
		Description: "Open a page in Chrome and fill its form from a profile. The form is never submitted.",
		InputSchema: inputSchema(map[string]any{
			"url":        map[string]any{"type": "string", "description": "http or https URL"},
			"profile_id": profileID,
		}, []string{"url"}),
	}, s.fillURLEndpoint, kit.DecodeArgs[FillURLRequest])

	s.register(srv, &mcp.Tool{
		Name:        "formfill_profiles",
		Description: "List stored profiles, or get one by id.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Profile id"},
		}, nil),
	}, s.profilesEndpoint, kit.DecodeArgs[ProfilesRequest])
}

func (s *Service) register(srv *mcp.Server, tool *mcp.Tool, ep kit.Endpoint, decode kit.Decoder) {
	kit.RegisterMCPTool(srv, tool, kit.Logging(s.logger, tool.Name)(ep), decode)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}
