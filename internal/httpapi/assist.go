package httpapi

import (
	"net/http"
	"strings"

	"github.com/joelkehle/hcp-insights/internal/claims"
	"github.com/joelkehle/hcp-insights/internal/insights"
	"github.com/joelkehle/hcp-insights/internal/options"
	"github.com/joelkehle/hcp-insights/internal/recommend"
	"github.com/joelkehle/hcp-insights/internal/telemetry"
)

type recommendationRequest struct {
	Dataset      string  `json:"dataset"`
	HCPID        string  `json:"hcp_id"`
	Company      string  `json:"company"`
	Product      string  `json:"product"`
	TA           *string `json:"ta"`
	LookbackDays *int    `json:"lookback_days"`
	HorizonDays  *int    `json:"horizon_days"`
	Today        string  `json:"today"`
}

type chatRequest struct {
	Messages []recommend.ChatMessage `json:"messages"`
	Question string                  `json:"question"`
	TA       string                  `json:"ta"`
	Company  string                  `json:"company"`
	Product  string                  `json:"product"`
}

// fallbackTips builds rule-based talking points for report output.
func fallbackTips(summaries []insights.ProviderSummary, company, product string, rows []claims.Row) map[string][]string {
	company = strings.TrimSpace(company)
	product = options.SanitizeProductSelection(rows, company, product)
	out := make(map[string][]string, len(summaries))
	for _, s := range summaries {
		out[s.HCPID] = recommend.Fallback(s, company, product)
	}
	return out
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	var req recommendationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.HCPID) == "" {
		writeError(w, validationError("hcp_id is required"))
		return
	}
	p, err := s.paramsFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	if req.TA != nil {
		p.TAFilter = strings.TrimSpace(*req.TA)
	}
	if req.LookbackDays != nil {
		p.LookbackDays = *req.LookbackDays
	}
	if req.HorizonDays != nil {
		p.HorizonDays = *req.HorizonDays
	}
	if raw := strings.TrimSpace(req.Today); raw != "" {
		d, ok := claims.ParseDate(raw)
		if !ok {
			writeError(w, validationError("today %q is not a date", raw))
			return
		}
		p.Today = d
	}

	rows, err := s.loadRows(r.Context(), req.Dataset)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, ok := insights.Find(s.aggregate(r.Context(), rows, p), strings.TrimSpace(req.HCPID))
	if !ok {
		writeError(w, newError(CodeNotFound, "hcp "+req.HCPID+" not found under current filter"))
		return
	}
	company, product := s.defaults.selection(req.Company, req.Product)
	product = options.SanitizeProductSelection(rows, company, product)

	ctx, span := telemetry.Tracer().Start(r.Context(), "recommend.Recommend")
	res := recommend.Recommend(ctx, s.gen, summary, company, product)
	span.End()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"company":        company,
		"product":        nullable(product),
		"recommendation": res,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	msgs := req.Messages
	if q := strings.TrimSpace(req.Question); q != "" {
		msgs = append(msgs, recommend.ChatMessage{Role: "user", Content: q})
	}
	if len(msgs) == 0 {
		writeError(w, validationError("messages or question is required"))
		return
	}
	msgs = recommend.WithSystemPrompt(msgs)
	cc := recommend.ChatContext{TA: req.TA, Company: req.Company, Product: req.Product}

	ctx, span := telemetry.Tracer().Start(r.Context(), "recommend.Answer")
	reply := recommend.Answer(ctx, s.chat, msgs, cc)
	span.End()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"reply":    reply,
		"messages": append(msgs, recommend.ChatMessage{Role: "assistant", Content: reply.Reply}),
	})
}
