package formfill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/formfill/field"
	"github.com/hazyhaar/formfill/formfill/internal/history"
	"github.com/hazyhaar/formfill/internal/dbopen"
	"github.com/hazyhaar/formfill/llm"
	"github.com/hazyhaar/formfill/profile"
)

const page = `<html><body><form>
<label for="email">Email</label><input id="email" type="email" name="email" required>
<label for="fn">First name</label><input id="fn" name="first_name">
</form></body></html>`

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePort struct {
	resp   field.Response
	err    error
	calls  int
	last   llm.Request
	onSend func()
}

func (f *fakePort) Provider() string { return "fake" }

func (f *fakePort) Send(_ context.Context, req llm.Request) (field.Response, error) {
	f.calls++
	f.last = req
	if f.onSend != nil {
		f.onSend()
	}
	return f.resp, f.err
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) sink() Sink {
	return NewCallbackSink(func(_ context.Context, ev Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
		return nil
	})
}

func testService(t *testing.T, port llm.Port, opts ...Option) (*Service, *profile.Store) {
	t.Helper()
	store, err := profile.NewStore(dbopen.Memory(t))
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Fill.Delay = 0
	base := []Option{WithLogger(quiet), WithProfiles(store)}
	if port != nil {
		base = append(base, WithLLM(port))
	}
	return New(cfg, append(base, opts...)...), store
}

func saveAda(t *testing.T, store *profile.Store) *profile.Profile {
	t.Helper()
	p := &profile.Profile{
		Name:   "ada",
		Resume: "Ada Lovelace, analyst.",
		Fields: map[string]string{"email": "ada@example.com", "first_name": "Ada", "last_name": "Lovelace"},
	}
	if err := store.Save(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func pageDescriptors() []field.Descriptor {
	return []field.Descriptor{
		{ID: "email", Kind: field.KindEmail, Label: "Email", Name: "email", Required: true},
		{ID: "fn", Kind: field.KindText, Label: "First name", Name: "first_name"},
	}
}

func TestPlan_UsesModel(t *testing.T) {
	// WHAT: Plan asks the model and maps its reply onto the form.
	// WHY: This is the normal path of every pass.
	resp := field.NewResponse()
	resp.Set("email", field.String("model@example.com"))
	port := &fakePort{resp: resp}
	svc, store := testService(t, port)
	prof := saveAda(t, store)

	p, err := svc.Plan(context.Background(), pageDescriptors(), "")
	if err != nil {
		t.Fatal(err)
	}
	if p.UsedFallback || p.Provider != "fake" || p.ProfileID != prof.ID {
		t.Errorf("pass = fallback:%v provider:%q profile:%q", p.UsedFallback, p.Provider, p.ProfileID)
	}
	if port.last.Resume != prof.Resume || port.last.Profile["first_name"] != "Ada" {
		t.Errorf("request = %+v", port.last)
	}
	if p.Summary.Mapped != 1 || p.Summary.Unmapped != 1 {
		t.Errorf("summary = %+v", p.Summary)
	}
	if got := p.Mappings[0].Resolved.Text; got != "model@example.com" {
		t.Errorf("email = %q", got)
	}
}

func TestPlan_ModelErrorFallsBack(t *testing.T) {
	// WHAT: Provider and parse failures fall back to profile fields.
	// WHY: A pass must still fill something when the model is down.
	for name, perr := range map[string]error{
		"provider":  &llm.Error{Provider: "fake", Err: errors.New("503")},
		"malformed": field.ErrMalformedResponse,
	} {
		t.Run(name, func(t *testing.T) {
			svc, store := testService(t, &fakePort{err: perr})
			saveAda(t, store)

			p, err := svc.Plan(context.Background(), pageDescriptors(), "")
			if err != nil {
				t.Fatal(err)
			}
			if !p.UsedFallback || p.ModelError == "" {
				t.Errorf("fallback = %v, model error = %q", p.UsedFallback, p.ModelError)
			}
			if p.Summary.Mapped != 2 || !p.Summary.Valid {
				t.Errorf("summary = %+v", p.Summary)
			}
		})
	}
}

func TestPlan_Cancelled(t *testing.T) {
	// WHAT: A cancelled context ends the pass with the context error.
	// WHY: Cancellation must not be masked by the fallback.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	port := &fakePort{err: &llm.Error{Provider: "fake", Err: context.Canceled}, onSend: cancel}
	svc, store := testService(t, port)
	saveAda(t, store)

	if _, err := svc.Plan(ctx, pageDescriptors(), ""); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPlan_NoModel(t *testing.T) {
	svc, store := testService(t, nil)
	saveAda(t, store)

	p, err := svc.Plan(context.Background(), pageDescriptors(), "")
	if err != nil {
		t.Fatal(err)
	}
	if !p.UsedFallback || p.ModelError != "" || p.Summary.Mapped != 2 {
		t.Errorf("pass = %+v", p)
	}
}

func TestPlan_Errors(t *testing.T) {
	svc, store := testService(t, nil)
	ctx := context.Background()

	if _, err := svc.Plan(ctx, pageDescriptors(), ""); !errors.Is(err, ErrNoProfile) {
		t.Errorf("empty store err = %v", err)
	}
	if _, err := svc.Plan(ctx, nil, ""); !errors.Is(err, ErrInvalidForm) || !errors.Is(err, field.ErrNoDescriptors) {
		t.Errorf("no descriptors err = %v", err)
	}
	saveAda(t, store)
	if _, err := svc.Plan(ctx, pageDescriptors(), "missing"); !errors.Is(err, profile.ErrNotFound) {
		t.Errorf("unknown profile err = %v", err)
	}
}

func TestFillHTML_SecondPass(t *testing.T) {
	// WHAT: When the model reply fills nothing, profile fields are tried.
	// WHY: A reply with the wrong keys is common with small models.
	resp := field.NewResponse()
	resp.Set("favourite_colour", field.String("blue"))
	var rec recorder
	svc, store := testService(t, &fakePort{resp: resp}, WithSinks(rec.sink()))
	saveAda(t, store)

	var out bytes.Buffer
	p, err := svc.FillHTML(context.Background(), strings.NewReader(page), &out, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !p.UsedFallback || p.Report == nil || p.Report.Filled != 2 {
		t.Fatalf("pass = fallback:%v report:%+v", p.UsedFallback, p.Report)
	}
	html := out.String()
	if !strings.Contains(html, `value="ada@example.com"`) || !strings.Contains(html, `value="Ada"`) {
		t.Errorf("filled html = %s", html)
	}
	if len(rec.events) != 1 || rec.events[0].PassID != p.ID || !rec.events[0].UsedFallback {
		t.Errorf("events = %+v", rec.events)
	}
}

func TestFillHTML_GivenResponse(t *testing.T) {
	port := &fakePort{}
	svc, _ := testService(t, port)

	resp := field.NewResponse()
	resp.Set("email", field.String("x@example.com"))
	var out bytes.Buffer
	p, err := svc.FillHTML(context.Background(), strings.NewReader(page), &out, "", &resp)
	if err != nil {
		t.Fatal(err)
	}
	if port.calls != 0 {
		t.Errorf("model called %d times", port.calls)
	}
	if p.Report.Filled != 1 || p.Report.Skipped != 1 {
		t.Errorf("report = %+v", p.Report)
	}
	if !strings.Contains(out.String(), `value="x@example.com"`) {
		t.Errorf("filled html = %s", out.String())
	}
}

func TestFillHTML_RecordsHistory(t *testing.T) {
	// WHAT: Every finished pass is stored in the history.
	// WHY: The HTTP API serves passes and stats from it.
	h, err := history.NewStore(dbopen.Memory(t))
	if err != nil {
		t.Fatal(err)
	}
	svc, store := testService(t, nil, withHistory(h))
	saveAda(t, store)

	p, err := svc.FillHTML(context.Background(), strings.NewReader(page), io.Discard, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	ev, err := h.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Report.Filled != 2 || ev.ProfileID != p.ProfileID {
		t.Errorf("recorded = %+v", ev)
	}
}

func TestFillURL_BadURL(t *testing.T) {
	// WHAT: Non-http and private URLs are refused before Chrome starts.
	// WHY: FillURL is reachable from the network.
	svc, _ := testService(t, nil)
	for _, u := range []string{"", "file:///etc/passwd", "javascript:alert(1)", "/relative", "http://", "http://127.0.0.1:9222/json"} {
		if _, err := svc.FillURL(context.Background(), u, ""); !errors.Is(err, ErrBadURL) {
			t.Errorf("%q: err = %v", u, err)
		}
	}
	if svc.browser != nil {
		t.Error("browser started for a rejected url")
	}
}

func TestDeterministic_FullName(t *testing.T) {
	prof := &profile.Profile{Fields: map[string]string{"first_name": "Ada", "last_name": "Lovelace"}}
	resp := deterministic(prof)
	v, ok := resp.Lookup("full_name")
	if !ok || v.String() != "Ada Lovelace" {
		t.Errorf("full_name = %v %v", v, ok)
	}
	if _, ok := prof.Fields["full_name"]; ok {
		t.Error("profile fields modified")
	}
	if deterministic(nil).Len() != 0 {
		t.Error("nil profile should give an empty response")
	}
}

func TestImportProfile(t *testing.T) {
	svc, store := testService(t, nil)
	path := t.TempDir() + "/cv.md"
	if err := os.WriteFile(path, []byte("# Grace Hopper\n\ngrace@example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := svc.ImportProfile(context.Background(), path, "grace")
	if err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "grace" || got.Fields["email"] != "grace@example.com" {
		t.Errorf("stored = %+v", got)
	}
}

func TestMCP_Reconcile(t *testing.T) {
	// WHAT: The MCP tools answer over a real client session.
	// WHY: Agents drive formfill through MCP.
	svc, _ := testService(t, nil)
	srv := mcp.NewServer(&mcp.Implementation{Name: "formfill-test", Version: "0.1.0"}, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	session, err := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "0.1.0"}, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: "formfill_reconcile",
		Arguments: map[string]any{
			"descriptors": pageDescriptors(),
			"response":    map[string]any{"first_name": "Ada"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %v", res.Content)
	}
	var out struct {
		Summary struct {
			Mapped int  `json:"mapped"`
			Valid  bool `json:"valid"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &out); err != nil {
		t.Fatal(err)
	}
	if out.Summary.Mapped != 1 || out.Summary.Valid {
		t.Errorf("summary = %+v", out.Summary)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "formfill_fill_url",
		Arguments: map[string]any{"url": "ftp://example.com"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("bad url should be a tool error")
	}
}

func TestHTTP(t *testing.T) {
	// WHAT: Routes enforce the bearer token and map errors to status codes.
	// WHY: The API is the remote surface of the service.
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	svc, store := testService(t, nil)
	svc.cfg.HTTP.TokenHash = string(hash)
	prof := saveAda(t, store)

	done := make(chan struct{})
	defer close(done)
	ts := httptest.NewServer(svc.Routes(done))
	defer ts.Close()

	do := func(method, path, token, body string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	if r := do("GET", "/healthz", "", ""); r.StatusCode != 200 {
		t.Errorf("healthz = %d", r.StatusCode)
	}
	if r := do("GET", "/api/profiles", "", ""); r.StatusCode != 401 {
		t.Errorf("no token = %d", r.StatusCode)
	}
	if r := do("GET", "/api/profiles", "wrong", ""); r.StatusCode != 401 {
		t.Errorf("wrong token = %d", r.StatusCode)
	}
	if r := do("GET", "/api/profiles/"+prof.ID, "s3cret", ""); r.StatusCode != 200 {
		t.Errorf("profile = %d", r.StatusCode)
	}
	if r := do("GET", "/api/profiles/nope", "s3cret", ""); r.StatusCode != 404 {
		t.Errorf("unknown profile = %d", r.StatusCode)
	}
	if r := do("POST", "/api/reconcile", "s3cret", `{"descriptors":[]}`); r.StatusCode != 400 {
		t.Errorf("empty descriptors = %d", r.StatusCode)
	}
	if r := do("POST", "/api/fill-url", "s3cret", `{"url":"mailto:x@example.com"}`); r.StatusCode != 400 {
		t.Errorf("bad url = %d", r.StatusCode)
	}
	if r := do("GET", "/api/stats", "s3cret", ""); r.StatusCode != 404 {
		t.Errorf("stats without history = %d", r.StatusCode)
	}

	r := do("POST", "/api/fill-html", "s3cret", `{"html":`+jsonString(page)+`}`)
	if r.StatusCode != 200 {
		t.Fatalf("fill-html = %d", r.StatusCode)
	}
	var res FillHTMLResult
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Pass.Report.Filled != 2 || !strings.Contains(res.HTML, "ada@example.com") {
		t.Errorf("fill-html result = %+v", res.Pass.Report)
	}
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store.Profiles = dir + "/profiles.db"
	cfg.Store.History = dir + "/history.db"
	cfg.LLM.Provider = "none"
	cfg.Sinks = nil

	svc, err := Open(context.Background(), cfg, WithLogger(quiet))
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()
	if svc.llm != nil || svc.history == nil || svc.Profiles() == nil {
		t.Errorf("service = llm:%v history:%v", svc.llm, svc.history)
	}

	cfg.Sinks = []SinkConfig{{Type: "webhook"}}
	if _, err := Open(context.Background(), cfg, WithLogger(quiet)); err == nil {
		t.Error("webhook without url should fail")
	}
	cfg.Sinks = nil
	cfg.LLM.Provider = "carrier-pigeon"
	if _, err := Open(context.Background(), cfg, WithLogger(quiet)); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestNewPort_Ollama(t *testing.T) {
	// WHAT: The configured port reaches Ollama and caches replies.
	// WHY: Open must assemble the whole middleware chain.
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"` + "```json\\n{\\\"email\\\":\\\"o@example.com\\\"}\\n```" + `"}`))
	}))
	defer ts.Close()

	cfg := DefaultConfig().LLM
	cfg.Provider = "ollama"
	cfg.URL = ts.URL
	port, err := newPort(context.Background(), cfg, quiet)
	if err != nil {
		t.Fatal(err)
	}
	req := llm.Request{Descriptors: pageDescriptors(), Resume: "r"}
	for range 2 {
		resp, err := port.Send(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		if v, _ := resp.Lookup("email"); v.String() != "o@example.com" {
			t.Errorf("email = %q", v.String())
		}
	}
	if calls != 1 {
		t.Errorf("provider calls = %d, want 1 (second served from cache)", calls)
	}
	if p, ok := port.(interface{ Provider() string }); !ok || p.Provider() != "ollama" {
		t.Error("provider name not exposed")
	}
}

func TestNewPort_GeminiWithoutKey(t *testing.T) {
	cfg := DefaultConfig().LLM
	port, err := newPort(context.Background(), cfg, quiet)
	if err != nil || port != nil {
		t.Errorf("port = %v, err = %v", port, err)
	}
}
