package recommend

import (
	"context"
	"errors"
	"log"

	"github.com/joelkehle/hcp-insights/internal/insights"
)

const (
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// Result is a set of talking points plus where they came from. Error carries
// the generator failure, if any, that forced the fallback.
type Result struct {
	HCPID  string   `json:"hcp_id"`
	Tips   []string `json:"tips"`
	Source string   `json:"source"`
	Error  string   `json:"error,omitempty"`
}

// Recommend asks gen for talking points and falls back to the rule-based set
// when gen is nil, fails, or returns nothing.
func Recommend(ctx context.Context, gen Generator, s insights.ProviderSummary, company, product string) Result {
	res := Result{HCPID: s.HCPID}
	if gen != nil {
		tips, err := gen.Generate(ctx, s, company, product)
		if err == nil && len(tips) == 0 {
			err = errEmptyResponse
		}
		if err == nil {
			res.Tips = tips
			res.Source = SourceAI
			return res
		}
		if errors.Is(err, context.Canceled) {
			log.Printf("recommendation cancelled hcp=%s", s.HCPID)
		} else {
			log.Printf("talking point generator failed hcp=%s class=%s, falling back to rules: %v", s.HCPID, classifyTransportError(err), err)
		}
		res.Error = err.Error()
	}
	res.Tips = Fallback(s, company, product)
	res.Source = SourceFallback
	return res
}
