package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/joelkehle/hcp-insights/internal/claims"
	"github.com/joelkehle/hcp-insights/internal/export"
	"github.com/joelkehle/hcp-insights/internal/insights"
	"github.com/joelkehle/hcp-insights/internal/options"
	"github.com/joelkehle/hcp-insights/internal/telemetry"
)

// paramsFromQuery resolves aggregation parameters, falling back to the
// server defaults. An explicit empty ta= clears the default filter.
func (s *Server) paramsFromQuery(q url.Values) (insights.Params, error) {
	p := insights.Params{
		TAFilter:     s.defaults.TAFilter,
		Today:        claims.Day(s.clock()),
		LookbackDays: s.defaults.LookbackDays,
		HorizonDays:  s.defaults.HorizonDays,
	}
	if q.Has("ta") {
		p.TAFilter = strings.TrimSpace(q.Get("ta"))
	}
	var err error
	if p.LookbackDays, err = parseInt(q.Get("lookback"), p.LookbackDays); err != nil {
		return p, validationError("lookback must be an integer")
	}
	if p.HorizonDays, err = parseInt(q.Get("horizon"), p.HorizonDays); err != nil {
		return p, validationError("horizon must be an integer")
	}
	if raw := strings.TrimSpace(q.Get("today")); raw != "" {
		d, ok := claims.ParseDate(raw)
		if !ok {
			return p, validationError("today %q is not a date", raw)
		}
		p.Today = d
	}
	return p, nil
}

func (s *Server) loadRows(ctx context.Context, datasetID string) ([]claims.Row, error) {
	if strings.TrimSpace(datasetID) == "" {
		return nil, validationError("dataset is required")
	}
	return s.store.LoadRows(ctx, datasetID)
}

func (s *Server) aggregate(ctx context.Context, rows []claims.Row, p insights.Params) []insights.ProviderSummary {
	_, span := telemetry.Tracer().Start(ctx, "insights.Aggregate")
	defer span.End()
	return insights.Aggregate(rows, p)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	p, err := s.paramsFromQuery(q)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.loadRows(r.Context(), q.Get("dataset"))
	if err != nil {
		writeError(w, err)
		return
	}
	summaries := s.aggregate(r.Context(), rows, p)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"params":    p,
		"kpis":      insights.ComputeKPIs(summaries),
		"summaries": summaries,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	p, err := s.paramsFromQuery(q)
	if err != nil {
		writeError(w, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format == "" {
		format = "csv"
	}
	rows, err := s.loadRows(r.Context(), q.Get("dataset"))
	if err != nil {
		writeError(w, err)
		return
	}
	summaries := s.aggregate(r.Context(), rows, p)
	company, product := s.defaults.selection(q.Get("company"), q.Get("product"))
	now := s.clock()

	var (
		buf         bytes.Buffer
		contentType string
		ext         string
	)
	switch format {
	case "csv":
		contentType, ext = "text/csv; charset=utf-8", "csv"
		err = export.WriteCSV(&buf, summaries)
	case "parquet":
		contentType, ext = "application/vnd.apache.parquet", "parquet"
		err = export.WriteParquet(&buf, summaries)
	case "markdown", "md", "html", "pdf":
		md := export.BuildMarkdown(export.ReportInput{
			GeneratedAt:  now,
			Params:       p,
			KPIs:         insights.ComputeKPIs(summaries),
			Summaries:    summaries,
			Tips:         fallbackTips(summaries, company, product, rows),
			MaxProviders: s.reportMax,
		})
		switch format {
		case "html":
			contentType, ext = "text/html; charset=utf-8", "html"
			var page string
			page, err = export.RenderHTML("", md)
			buf.WriteString(page)
		case "pdf":
			if s.pdf == nil {
				writeError(w, newError(CodeUnavailable, "pdf rendering not configured"))
				return
			}
			contentType, ext = "application/pdf", "pdf"
			var pdf []byte
			pdf, err = s.pdf.Render(r.Context(), "", md)
			buf.Write(pdf)
		default:
			contentType, ext = "text/markdown; charset=utf-8", "md"
			buf.WriteString(md)
		}
	default:
		writeError(w, validationError("unsupported format %q", format))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(now, ext)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	rows, err := s.loadRows(r.Context(), q.Get("dataset"))
	if err != nil {
		writeError(w, err)
		return
	}
	company, product := strings.TrimSpace(q.Get("company")), strings.TrimSpace(q.Get("product"))
	if !q.Has("company") {
		company = s.defaults.Company
	}
	if !q.Has("product") {
		product = s.defaults.Product
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                true,
		"companies":         options.Companies(rows),
		"products":          options.ProductOptions(rows, company),
		"therapeutic_areas": options.TherapeuticAreas(rows),
		"company":           company,
		"product":           nullable(options.SanitizeProductSelection(rows, company, product)),
	})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
