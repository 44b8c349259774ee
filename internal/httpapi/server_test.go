package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joelkehle/hcp-insights/internal/insights"
	"github.com/joelkehle/hcp-insights/internal/recommend"
	"github.com/joelkehle/hcp-insights/internal/store"
)

const fixtureCSV = `claim_date,hcp_id,hcp_specialty,site_of_care,ta,drug_name,drug_class,paid_amount,new_patient_flag,last_seen_date,next_appt_date,company,product
2025-08-01,H1,Medical Oncology,Hospital Outpatient,Oncology:NSCLC,Pembrolizumab,Immunotherapy,1000,N,2025-08-05,2025-08-15,Merck,Keytruda
2025-08-01,H1,Medical Oncology,Hospital Outpatient,Oncology:NSCLC,Carboplatin,Chemotherapy,1000,N,2025-08-05,2025-08-15,,
2025-08-01,H1,Medical Oncology,Hospital Outpatient,Oncology:NSCLC,Pembrolizumab,Immunotherapy,1000,Y,2025-08-05,2025-08-15,,
2025-08-01,H2,Medical Oncology,Hospital Outpatient,Oncology:Breast,Trastuzumab,Targeted,1000,N,2025-08-02,2025-08-20,,
2025-08-01,H3,Medical Oncology,Hospital Outpatient,Oncology:NSCLC,Docetaxel,Chemotherapy,1000,N,31/07/2025,01/09/2025,,
`

var testNow = time.Date(2025, 8, 9, 15, 0, 0, 0, time.UTC)

type stubGenerator struct {
	tips []string
	err  error
}

func (g *stubGenerator) Generate(_ context.Context, _ insights.ProviderSummary, _, _ string) ([]string, error) {
	return g.tips, g.err
}

type stubPDF struct{ calls int }

func (p *stubPDF) Render(_ context.Context, _, markdown string) ([]byte, error) {
	p.calls++
	return []byte("%PDF-1.4 " + markdown[:10]), nil
}

func newServerForTest(opts Options) http.Handler {
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore(store.Config{Clock: func() time.Time { return testNow }})
	}
	opts.Defaults = Defaults{LookbackDays: 30, HorizonDays: 21}
	opts.Clock = func() time.Time { return testNow }
	return NewServer(opts)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	blob, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(blob))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
}

func mustUpload(t *testing.T, h http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets?name=august", strings.NewReader(fixtureCSV))
	req.Header.Set("Content-Type", "text/csv")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		Dataset store.Dataset `json:"dataset"`
	}
	decode(t, rr, &out)
	if out.Dataset.RowCount != 5 {
		t.Fatalf("dataset=%+v", out.Dataset)
	}
	return out.Dataset.ID
}

func TestHealth(t *testing.T) {
	h := newServerForTest(Options{Generator: &stubGenerator{}})
	rr := get(t, h, "/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var out map[string]any
	decode(t, rr, &out)
	if out["generator"] != true || out["chat"] != false || out["pdf"] != false {
		t.Fatalf("health=%v", out)
	}
}

func TestDatasetLifecycle(t *testing.T) {
	h := newServerForTest(Options{})
	id := mustUpload(t, h)

	rr := get(t, h, "/v1/datasets")
	var list struct {
		Datasets []store.Dataset `json:"datasets"`
	}
	decode(t, rr, &list)
	if len(list.Datasets) != 1 || list.Datasets[0].Name != "august" {
		t.Fatalf("list=%+v", list)
	}

	if rr := get(t, h, "/v1/datasets/"+id); rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/datasets/"+id, nil)
	del := httptest.NewRecorder()
	h.ServeHTTP(del, req)
	if del.Code != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", del.Code, del.Body.String())
	}
	if rr := get(t, h, "/v1/datasets/"+id); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	h := newServerForTest(Options{MaxUploadBytes: 64})
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", strings.NewReader(fixtureCSV))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestInsightsFilterAndOrder(t *testing.T) {
	h := newServerForTest(Options{})
	id := mustUpload(t, h)

	rr := get(t, h, "/v1/insights?dataset="+id+"&ta=nsclc")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		KPIs      insights.KPIs              `json:"kpis"`
		Summaries []insights.ProviderSummary `json:"summaries"`
		Params    insights.Params            `json:"params"`
	}
	decode(t, rr, &out)
	if len(out.Summaries) != 2 || out.Summaries[0].HCPID != "H1" || out.Summaries[1].HCPID != "H3" {
		t.Fatalf("summaries=%+v", out.Summaries)
	}
	if out.KPIs.TotalHCPs != 2 || out.KPIs.TotalPatients != 4 {
		t.Fatalf("kpis=%+v", out.KPIs)
	}
	if !out.Params.Today.Equal(time.Date(2025, 8, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("today should be truncated to the day, got %s", out.Params.Today)
	}

	all := get(t, h, "/v1/insights?dataset="+id+"&horizon=30")
	decode(t, all, &out)
	if len(out.Summaries) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(out.Summaries))
	}
	h3, _ := insights.Find(out.Summaries, "H3")
	if h3.UpcomingPatients != 1 {
		t.Fatalf("wider horizon should include H3 appointment, got %d", h3.UpcomingPatients)
	}
}

func TestInsightsValidation(t *testing.T) {
	h := newServerForTest(Options{})
	id := mustUpload(t, h)
	for _, path := range []string{
		"/v1/insights",
		"/v1/insights?dataset=" + id + "&lookback=abc",
		"/v1/insights?dataset=" + id + "&today=not-a-date",
	} {
		if rr := get(t, h, path); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}
	if rr := get(t, h, "/v1/insights?dataset=missing"); rr.Code != http.StatusNotFound {
		t.Fatalf("missing dataset status=%d", rr.Code)
	}
}

func TestExportCSV(t *testing.T) {
	h := newServerForTest(Options{})
	id := mustUpload(t, h)
	rr := get(t, h, "/v1/insights/export?dataset="+id)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type=%q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "hcp_insights_") || !strings.Contains(cd, ".csv") {
		t.Fatalf("disposition=%q", cd)
	}
	lines := strings.Split(rr.Body.String(), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[1], "H1,") {
		t.Fatalf("csv=%q", rr.Body.String())
	}
	if !strings.HasSuffix(lines[3], ",2025-07-31,2025-09-01,1000") {
		t.Fatalf("H3 row=%q", lines[3])
	}
}

func TestExportFormats(t *testing.T) {
	pdf := &stubPDF{}
	h := newServerForTest(Options{PDF: pdf})
	id := mustUpload(t, h)

	md := get(t, h, "/v1/insights/export?dataset="+id+"&format=markdown&company=Merck&product=Keytruda")
	if md.Code != http.StatusOK || !strings.Contains(md.Body.String(), "2 trial patients on Keytruda this month") {
		t.Fatalf("markdown status=%d body=%s", md.Code, md.Body.String())
	}
	htmlOut := get(t, h, "/v1/insights/export?dataset="+id+"&format=html")
	if htmlOut.Code != http.StatusOK || !strings.Contains(htmlOut.Body.String(), "<table>") {
		t.Fatalf("html status=%d", htmlOut.Code)
	}
	pq := get(t, h, "/v1/insights/export?dataset="+id+"&format=parquet")
	if pq.Code != http.StatusOK || !bytes.HasPrefix(pq.Body.Bytes(), []byte("PAR1")) {
		t.Fatalf("parquet status=%d", pq.Code)
	}
	p := get(t, h, "/v1/insights/export?dataset="+id+"&format=pdf")
	if p.Code != http.StatusOK || pdf.calls != 1 || !strings.HasPrefix(p.Body.String(), "%PDF") {
		t.Fatalf("pdf status=%d calls=%d", p.Code, pdf.calls)
	}
	if bad := get(t, h, "/v1/insights/export?dataset="+id+"&format=xlsx"); bad.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format status=%d", bad.Code)
	}
}

func TestExportPDFUnavailable(t *testing.T) {
	h := newServerForTest(Options{})
	id := mustUpload(t, h)
	rr := get(t, h, "/v1/insights/export?dataset="+id+"&format=pdf")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestOptionsSanitizesProduct(t *testing.T) {
	h := newServerForTest(Options{})
	id := mustUpload(t, h)

	rr := get(t, h, "/v1/options?dataset="+id+"&company=Merck&product=Opdivo")
	var out struct {
		Companies []string `json:"companies"`
		Products  []string `json:"products"`
		TAs       []string `json:"therapeutic_areas"`
		Product   *string  `json:"product"`
	}
	decode(t, rr, &out)
	if out.Product != nil {
		t.Fatalf("Opdivo is not a Merck product, got %q", *out.Product)
	}
	if len(out.Products) != 1 || out.Products[0] != "Keytruda" {
		t.Fatalf("products=%v", out.Products)
	}
	if len(out.TAs) != 2 {
		t.Fatalf("tas=%v", out.TAs)
	}

	rr = get(t, h, "/v1/options?dataset="+id+"&company=Merck&product=Keytruda")
	decode(t, rr, &out)
	if out.Product == nil || *out.Product != "Keytruda" {
		t.Fatalf("expected Keytruda kept, got %v", out.Product)
	}
}

func TestConfiguredCompanyAndProductDefaults(t *testing.T) {
	h := NewServer(Options{
		Store:    store.NewMemoryStore(store.Config{Clock: func() time.Time { return testNow }}),
		Defaults: Defaults{LookbackDays: 30, HorizonDays: 21, Company: "Merck", Product: "Keytruda"},
		Clock:    func() time.Time { return testNow },
	})
	id := mustUpload(t, h)

	var opts struct {
		Company string  `json:"company"`
		Product *string `json:"product"`
	}
	decode(t, get(t, h, "/v1/options?dataset="+id), &opts)
	if opts.Company != "Merck" || opts.Product == nil || *opts.Product != "Keytruda" {
		t.Fatalf("defaults not applied: company=%q product=%v", opts.Company, opts.Product)
	}
	decode(t, get(t, h, "/v1/options?dataset="+id+"&company=&product="), &opts)
	if opts.Company != "" || opts.Product != nil {
		t.Fatalf("explicit blanks should clear defaults: company=%q product=%v", opts.Company, opts.Product)
	}

	rr := postJSON(t, h, "/v1/recommendations", map[string]any{"dataset": id, "hcp_id": "H1"})
	var out struct {
		Company        string           `json:"company"`
		Product        *string          `json:"product"`
		Recommendation recommend.Result `json:"recommendation"`
	}
	decode(t, rr, &out)
	if out.Company != "Merck" || out.Product == nil || *out.Product != "Keytruda" {
		t.Fatalf("company=%q product=%v", out.Company, out.Product)
	}
	tips := out.Recommendation.Tips
	if last := tips[len(tips)-1]; last != "Close with a clear ask: 2 trial patients on Keytruda this month — Merck can support access & prior-auth." {
		t.Fatalf("closing tip=%q", last)
	}
}

func TestRecommendationsFallback(t *testing.T) {
	h := newServerForTest(Options{Generator: &stubGenerator{err: errors.New("status code: 503")}})
	id := mustUpload(t, h)

	rr := postJSON(t, h, "/v1/recommendations", map[string]any{
		"dataset": id, "hcp_id": "H1", "company": "Merck", "product": "Opdivo",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		Product        *string          `json:"product"`
		Recommendation recommend.Result `json:"recommendation"`
	}
	decode(t, rr, &out)
	if out.Product != nil {
		t.Fatalf("invalid product should be cleared, got %q", *out.Product)
	}
	res := out.Recommendation
	if res.Source != recommend.SourceFallback || !strings.Contains(res.Error, "503") {
		t.Fatalf("result=%+v", res)
	}
	last := res.Tips[len(res.Tips)-1]
	if last != "Close with a clear ask: 2 trial patients on our product this month — Merck can support access & prior-auth." {
		t.Fatalf("closing tip=%q", last)
	}
}

func TestRecommendationsUsesGenerator(t *testing.T) {
	h := newServerForTest(Options{Generator: &stubGenerator{tips: []string{"one", "two"}}})
	id := mustUpload(t, h)
	rr := postJSON(t, h, "/v1/recommendations", map[string]any{"dataset": id, "hcp_id": "H2"})
	var out struct {
		Recommendation recommend.Result `json:"recommendation"`
	}
	decode(t, rr, &out)
	if out.Recommendation.Source != recommend.SourceAI || len(out.Recommendation.Tips) != 2 {
		t.Fatalf("result=%+v", out.Recommendation)
	}
}

func TestRecommendationsUnknownProvider(t *testing.T) {
	h := newServerForTest(Options{})
	id := mustUpload(t, h)
	rr := postJSON(t, h, "/v1/recommendations", map[string]any{"dataset": id, "hcp_id": "H2", "ta": "NSCLC"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("H2 is filtered out by ta, status=%d", rr.Code)
	}
	rr = postJSON(t, h, "/v1/recommendations", map[string]any{"dataset": id})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing hcp_id status=%d", rr.Code)
	}
}

func TestChatFallbackWithoutEndpoint(t *testing.T) {
	h := newServerForTest(Options{})
	rr := postJSON(t, h, "/v1/chat", map[string]any{"question": "Hello", "ta": "NSCLC", "company": "Merck", "product": "Keytruda"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		Reply    recommend.ChatReply     `json:"reply"`
		Messages []recommend.ChatMessage `json:"messages"`
	}
	decode(t, rr, &out)
	if out.Reply.Source != recommend.SourceFallback || !strings.Contains(out.Reply.Reply, "Context: TA: NSCLC | Company: Merck | Product: Keytruda") {
		t.Fatalf("reply=%+v", out.Reply)
	}
	if len(out.Messages) != 3 || out.Messages[0].Role != "system" || out.Messages[2].Role != "assistant" {
		t.Fatalf("messages=%+v", out.Messages)
	}
}

func TestChatRequiresQuestion(t *testing.T) {
	h := newServerForTest(Options{})
	if rr := postJSON(t, h, "/v1/chat", map[string]any{}); rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}
