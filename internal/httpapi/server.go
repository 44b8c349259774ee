package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joelkehle/hcp-insights/internal/export"
	"github.com/joelkehle/hcp-insights/internal/recommend"
	"github.com/joelkehle/hcp-insights/internal/store"
)

// Defaults are the parameters used when a request leaves them out.
type Defaults struct {
	TAFilter     string
	LookbackDays int
	HorizonDays  int
	Company      string
	Product      string
}

// selection applies the default company and product to blank request values.
func (d Defaults) selection(company, product string) (string, string) {
	if strings.TrimSpace(company) == "" {
		company = d.Company
	}
	if strings.TrimSpace(product) == "" {
		product = d.Product
	}
	return strings.TrimSpace(company), strings.TrimSpace(product)
}

type Options struct {
	Store     store.Store
	Generator recommend.Generator
	Chat      recommend.Chatter
	PDF       export.PDFRenderer
	Defaults  Defaults
	// MaxUploadBytes caps dataset uploads; 0 means 32 MiB.
	MaxUploadBytes int64
	// ReportMaxProviders caps detail sections in reports; 0 means all.
	ReportMaxProviders int
	Clock              func() time.Time
}

type Server struct {
	store     store.Store
	gen       recommend.Generator
	chat      recommend.Chatter
	pdf       export.PDFRenderer
	defaults  Defaults
	maxUpload int64
	reportMax int
	clock     func() time.Time
}

func NewServer(opts Options) http.Handler {
	s := &Server{
		store:     opts.Store,
		gen:       opts.Generator,
		chat:      opts.Chat,
		pdf:       opts.PDF,
		defaults:  opts.Defaults,
		maxUpload: opts.MaxUploadBytes,
		reportMax: opts.ReportMaxProviders,
		clock:     opts.Clock,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 32 << 20
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.HandleFunc("/v1/datasets", s.handleDatasets)
	mux.HandleFunc("/v1/datasets/", s.handleDataset)
	mux.HandleFunc("/v1/insights", s.handleInsights)
	mux.HandleFunc("/v1/insights/export", s.handleExport)
	mux.HandleFunc("/v1/options", s.handleOptions)
	mux.HandleFunc("/v1/recommendations", s.handleRecommendations)
	mux.HandleFunc("/v1/chat", s.handleChat)
	return withTracing(mux)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func decodeJSON(r *http.Request, dst any) error {
	blob, err := readBody(r)
	if err != nil {
		return validationError("read body: %v", err)
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		return validationError("invalid json: %v", err)
	}
	return nil
}

func parseInt(value string, def int) (int, error) {
	if strings.TrimSpace(value) == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return v, nil
}

func methodOnly(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"generator": s.gen != nil,
		"chat":      s.chat != nil,
		"pdf":       s.pdf != nil,
		"time":      s.clock().UTC().Format(time.RFC3339),
	})
}
