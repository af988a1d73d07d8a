// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/siteselect/internal/ingest"
	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/recommend"
	"github.com/tomtom215/siteselect/internal/registry"
	"github.com/tomtom215/siteselect/internal/resolve"
	"github.com/tomtom215/siteselect/internal/scoring"
)

// envelope mirrors models.APIResponse with the payload left raw.
type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testStack struct {
	handler  http.Handler
	registry *registry.Registry
}

func newTestStack(t *testing.T, mw *ChiMiddlewareConfig, mutate func(*Dependencies)) *testStack {
	t.Helper()
	ctx := context.Background()

	reg, err := registry.New(ctx, registry.NewMemoryStore(), logging.Nop())
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	res := resolve.New(reg, resolve.NewMatcher(true, 90), nil, resolve.Config{}, logging.Nop())
	pipeline := ingest.NewPipeline(res, logging.Nop())

	scorer, err := scoring.New(scoring.NewMemoryScoreStore(), logging.Nop())
	if err != nil {
		t.Fatalf("scoring.New() error = %v", err)
	}
	engine, err := recommend.NewEngine(recommend.DefaultConfig(), scorer, logging.Nop())
	if err != nil {
		t.Fatalf("recommend.NewEngine() error = %v", err)
	}

	deps := Dependencies{
		Sites:     reg,
		Mentions:  pipeline,
		Engine:    engine,
		Degraded:  res.Degraded,
		Transport: ingest.TransportChannel,
	}
	if mutate != nil {
		mutate(&deps)
	}

	h, err := NewHandler(deps, logging.Nop())
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if mw == nil {
		mw = DefaultChiMiddlewareConfig()
		mw.RateLimitDisabled = true
	}
	return &testStack{handler: NewRouter(h, mw).SetupChi(), registry: reg}
}

func (s *testStack) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	reg, err := registry.New(context.Background(), registry.NewMemoryStore(), logging.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewHandler(Dependencies{Sites: reg}, logging.Nop()); err == nil {
		t.Error("NewHandler() without mention processor should fail")
	}
	if _, err := NewHandler(Dependencies{}, logging.Nop()); err == nil {
		t.Error("NewHandler() without sites should fail")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Dependencies)
		wantStatus string
		wantMode   string
		wantStore  bool
	}{
		{"healthy", nil, "healthy", string(resolve.ModeFuzzy), true},
		{"degraded resolver", func(d *Dependencies) { d.Degraded = func() bool { return true } }, "degraded", string(resolve.ModeExactOnly), true},
		{"store down", func(d *Dependencies) { d.Store = failingPinger{} }, "degraded", string(resolve.ModeFuzzy), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStack(t, nil, tt.mutate)
			rec, env := s.do(t, http.MethodGet, "/health", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var hs HealthStatus
			decodeData(t, env, &hs)
			if hs.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", hs.Status, tt.wantStatus)
			}
			if hs.ResolverMode != tt.wantMode {
				t.Errorf("ResolverMode = %q, want %q", hs.ResolverMode, tt.wantMode)
			}
			if hs.StoreConnected != tt.wantStore {
				t.Errorf("StoreConnected = %v, want %v", hs.StoreConnected, tt.wantStore)
			}
			if hs.IngestTransport != ingest.TransportChannel {
				t.Errorf("IngestTransport = %q", hs.IngestTransport)
			}
		})
	}
}

func TestResolveMentions_Single(t *testing.T) {
	s := newTestStack(t, nil, nil)
	body := `{"name":"Mayo Clinic","city":"Rochester","country":"United States",
		"study":{"nct_id":"NCT00000001","conditions":["Diabetes"],"phase":"Phase 2","overall_status":"COMPLETED","enrollment":120}}`

	rec, env := s.do(t, http.MethodPost, "/api/v1/mentions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first mention status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var first resolve.Result
	decodeData(t, env, &first)
	if first.Method != resolve.MethodCreated || first.SiteID == "" {
		t.Fatalf("first result = %+v", first)
	}

	rec, env = s.do(t, http.MethodPost, "/api/v1/mentions", `{"name":"MAYO CLINIC","country":"United States"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat mention status = %d, want 200", rec.Code)
	}
	var second resolve.Result
	decodeData(t, env, &second)
	if second.Method != resolve.MethodExact {
		t.Errorf("Method = %q, want exact", second.Method)
	}
	if second.SiteID != first.SiteID {
		t.Errorf("SiteID = %q, want %q", second.SiteID, first.SiteID)
	}
	if s.registry.Len() != 1 {
		t.Errorf("registry holds %d sites, want 1", s.registry.Len())
	}
}

func TestResolveMentions_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"empty body", "", http.StatusBadRequest, CodeInvalidJSON},
		{"malformed json", `{"name":`, http.StatusBadRequest, CodeInvalidJSON},
		{"missing name", `{"city":"Boston"}`, http.StatusBadRequest, CodeValidation},
		{"numeric name", `{"name":"12345"}`, http.StatusUnprocessableEntity, CodeMentionRejected},
		{"wrong shape", `"Mayo Clinic"`, http.StatusBadRequest, CodeInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStack(t, nil, nil)
			rec, env := s.do(t, http.MethodPost, "/api/v1/mentions", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if env.Status != "error" || env.Error == nil {
				t.Fatalf("envelope = %+v, want error", env)
			}
			if env.Error.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", env.Error.Code, tt.wantErr)
			}
		})
	}
}

func TestResolveMentions_Batch(t *testing.T) {
	s := newTestStack(t, nil, nil)
	body := `[
		{"name":"Mayo Clinic","country":"United States"},
		{"name":"Mayo Clinic","country":"United States"},
		{"name":"Charité Universitätsmedizin Berlin","country":"Germany"},
		{"name":""},
		{"name":"12345"}
	]`

	rec, env := s.do(t, http.MethodPost, "/api/v1/mentions", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var summary ingest.Summary
	decodeData(t, env, &summary)
	checks := []struct {
		name      string
		got, want int
	}{
		{"processed", summary.Processed, 5},
		{"created", summary.Resolved[resolve.MethodCreated], 2},
		{"exact", summary.Resolved[resolve.MethodExact], 1},
		{"invalid", summary.Invalid, 1},
		{"rejected", summary.Rejected, 1},
		{"errors", len(summary.Errors), 2},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
}

func TestResolveMentions_BatchTooLarge(t *testing.T) {
	s := newTestStack(t, nil, nil)
	h, err := NewHandler(Dependencies{
		Sites:    s.registry,
		Mentions: ingest.NewPipeline(resolve.New(s.registry, nil, nil, resolve.Config{}, logging.Nop()), logging.Nop()),
		Engine:   &recommend.Engine{},
	}, logging.Nop(), WithMaxBatchSize(2))
	if err != nil {
		t.Fatal(err)
	}
	mw := DefaultChiMiddlewareConfig()
	mw.RateLimitDisabled = true
	handler := NewRouter(h, mw).SetupChi()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mentions", strings.NewReader(`[{"name":"A Hospital"},{"name":"B Hospital"},{"name":"C Hospital"}]`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if s.registry.Len() != 0 {
		t.Errorf("oversized batch created %d sites", s.registry.Len())
	}
}

func seedSites(t *testing.T, s *testStack) []resolve.Result {
	t.Helper()
	bodies := []string{
		`{"name":"Mayo Clinic","city":"Rochester","country":"United States","study":{"nct_id":"NCT1","conditions":["Diabetes"],"phase":"Phase 2","intervention_types":["Drug"],"overall_status":"COMPLETED","enrollment":200}}`,
		`{"name":"Charité Universitätsmedizin Berlin","city":"Berlin","country":"Germany","study":{"nct_id":"NCT2","conditions":["Diabetes"],"phase":"Phase 3","intervention_types":["Drug"],"overall_status":"COMPLETED","enrollment":150}}`,
		`{"name":"Hôpital Necker","city":"Paris","country":"France"}`,
	}
	results := make([]resolve.Result, 0, len(bodies))
	for _, b := range bodies {
		rec, env := s.do(t, http.MethodPost, "/api/v1/mentions", b)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed status = %d: %s", rec.Code, rec.Body.String())
		}
		var r resolve.Result
		decodeData(t, env, &r)
		results = append(results, r)
	}
	return results
}

func TestListSites(t *testing.T) {
	s := newTestStack(t, nil, nil)
	seedSites(t, s)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantTotal int
		wantPage  int
	}{
		{"all", "", http.StatusOK, 3, 3},
		{"country filter", "?country=germany", http.StatusOK, 1, 1},
		{"paged", "?limit=2&offset=2", http.StatusOK, 3, 1},
		{"offset past end", "?offset=10", http.StatusOK, 3, 0},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0, 0},
		{"limit too large", "?limit=5000", http.StatusBadRequest, 0, 0},
		{"negative offset", "?offset=-1", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodGet, "/api/v1/sites"+tt.query, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var list SiteList
			decodeData(t, env, &list)
			if list.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", list.Total, tt.wantTotal)
			}
			if len(list.Sites) != tt.wantPage {
				t.Errorf("page size = %d, want %d", len(list.Sites), tt.wantPage)
			}
		})
	}
}

func TestGetSite(t *testing.T) {
	s := newTestStack(t, nil, nil)
	seeded := seedSites(t, s)

	rec, env := s.do(t, http.MethodGet, "/api/v1/sites/"+seeded[0].SiteID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var detail SiteDetail
	decodeData(t, env, &detail)
	if detail.Site == nil || detail.Site.ID != seeded[0].SiteID {
		t.Fatalf("Site = %+v", detail.Site)
	}
	if len(detail.Links) != 1 || detail.Links[0].NCTID != "NCT1" {
		t.Errorf("Links = %+v, want one link to NCT1", detail.Links)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/sites/"+seeded[2].SiteID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(string(env.Data), `"links":[]`) {
		t.Errorf("site without studies should render empty links: %s", env.Data)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/sites/does-not-exist", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing site status = %d, want 404", rec.Code)
	}
	if env.Error == nil || env.Error.Code != CodeNotFound {
		t.Errorf("error = %+v, want %s", env.Error, CodeNotFound)
	}
}

const recommendationBody = `{"target_study":{"conditions":["Diabetes"],"phase":"Phase 2","intervention_type":"Drug","country":"United States"}}`

func TestRecommend(t *testing.T) {
	s := newTestStack(t, nil, nil)
	seedSites(t, s)

	rec, env := s.do(t, http.MethodPost, "/api/v1/recommendations", recommendationBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var report models.RecommendationReport
	decodeData(t, env, &report)
	if report.Considered != 3 {
		t.Errorf("Considered = %d, want 3", report.Considered)
	}
	for _, tier := range models.AllTiers {
		if _, ok := report.Tiers[tier]; !ok {
			t.Errorf("tier %q missing from report", tier)
		}
	}
	if report.Total()+report.Excluded != report.Shortlisted {
		t.Errorf("tiered %d + excluded %d != shortlisted %d",
			report.Total(), report.Excluded, report.Shortlisted)
	}
}

func TestRecommend_Preferences(t *testing.T) {
	s := newTestStack(t, nil, nil)
	seedSites(t, s)

	body := `{"target_study":{"conditions":["Diabetes"],"phase":"Phase 2","intervention_type":"Drug"},
		"preferences":{"countries":["Antarctica"]}}`
	rec, env := s.do(t, http.MethodPost, "/api/v1/recommendations", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var report models.RecommendationReport
	decodeData(t, env, &report)
	if report.Total() != 0 {
		t.Errorf("Total() = %d, want 0 after country preference", report.Total())
	}
}

func TestRecommend_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"empty body", "", http.StatusBadRequest, CodeInvalidJSON},
		{"missing phase", `{"target_study":{"conditions":["Diabetes"],"intervention_type":"Drug"}}`, http.StatusBadRequest, CodeValidation},
		{"no conditions", `{"target_study":{"conditions":[],"phase":"Phase 2","intervention_type":"Drug"}}`, http.StatusBadRequest, CodeValidation},
		{"not an object", `[1,2]`, http.StatusBadRequest, CodeInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStack(t, nil, nil)
			rec, env := s.do(t, http.MethodPost, "/api/v1/recommendations", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if env.Error == nil || env.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want %s", env.Error, tt.wantErr)
			}
		})
	}
}

func TestScenarios(t *testing.T) {
	s := newTestStack(t, nil, nil)
	seedSites(t, s)

	rec, env := s.do(t, http.MethodPost, "/api/v1/recommendations/scenarios", recommendationBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var reports map[string]models.RecommendationReport
	decodeData(t, env, &reports)

	want := map[string]string{
		recommend.ScenarioBase:         "Phase 2",
		recommend.ScenarioConservative: "Phase 3",
		recommend.ScenarioAggressive:   "Phase 1",
	}
	if len(reports) != len(want) {
		t.Fatalf("got %d scenarios, want %d", len(reports), len(want))
	}
	for name, phase := range want {
		r, ok := reports[name]
		if !ok {
			t.Errorf("scenario %q missing", name)
			continue
		}
		if r.TargetStudy.Phase != phase {
			t.Errorf("%s phase = %q, want %q", name, r.TargetStudy.Phase, phase)
		}
	}
}

func TestRouter_Fallbacks(t *testing.T) {
	s := newTestStack(t, nil, nil)

	rec, env := s.do(t, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != CodeNotFound {
		t.Errorf("unknown route: status %d, error %+v", rec.Code, env.Error)
	}

	rec, env = s.do(t, http.MethodDelete, "/api/v1/sites", "")
	if rec.Code != http.StatusMethodNotAllowed || env.Error == nil || env.Error.Code != CodeMethodNotAllowed {
		t.Errorf("wrong method: status %d, error %+v", rec.Code, env.Error)
	}
}

func TestRouter_RequestID(t *testing.T) {
	s := newTestStack(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("X-Request-ID", "req-abc-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-abc-123" {
		t.Errorf("X-Request-ID header = %q, want req-abc-123", got)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Metadata.RequestID != "req-abc-123" {
		t.Errorf("metadata.request_id = %q", env.Metadata.RequestID)
	}

	rec, _ = s.do(t, http.MethodGet, "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("generated X-Request-ID header missing")
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("ETag header missing")
	}
}

func TestRouter_Metrics(t *testing.T) {
	s := newTestStack(t, nil, nil)
	s.do(t, http.MethodGet, "/api/v1/sites", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "siteselect_") {
		t.Error("metrics output has no siteselect_ series")
	}
}
