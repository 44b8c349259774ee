package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joelkehle/hcp-insights/internal/claims"
	"github.com/joelkehle/hcp-insights/internal/export"
	"github.com/joelkehle/hcp-insights/internal/insights"
	"github.com/joelkehle/hcp-insights/internal/options"
	"github.com/joelkehle/hcp-insights/internal/recommend"
)

func main() {
	inputPath := flag.String("input", "", "Path to claims CSV")
	outputPath := flag.String("output", "", "Path to write output (defaults to stdout; required for parquet and pdf)")
	format := flag.String("format", "csv", "Output format: csv, json, markdown, html, parquet, pdf")
	ta := flag.String("ta", "", "Therapeutic area substring filter")
	lookback := flag.Int("lookback", insights.DefaultLookbackDays, "Recent window in days")
	horizon := flag.Int("horizon", insights.DefaultHorizonDays, "Upcoming window in days")
	today := flag.String("today", "", "As-of date (YYYY-MM-DD or DD/MM/YYYY); defaults to now")
	company := flag.String("company", "", "Company for talking points")
	product := flag.String("product", "", "Product for talking points")
	useLLM := flag.Bool("llm", false, "Generate talking points with Anthropic when ANTHROPIC_API_KEY is set")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("missing required -input")
	}
	f, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	rows, err := claims.ParseCSV(f)
	f.Close()
	if err != nil {
		log.Fatalf("parse input: %v", err)
	}

	p := insights.Params{TAFilter: *ta, Today: claims.Day(time.Now()), LookbackDays: *lookback, HorizonDays: *horizon}
	if *today != "" {
		d, ok := claims.ParseDate(*today)
		if !ok {
			log.Fatalf("invalid -today %q", *today)
		}
		p.Today = d
	}
	summaries := insights.Aggregate(rows, p)
	log.Printf("aggregated rows=%d providers=%d", len(rows), len(summaries))

	co := strings.TrimSpace(*company)
	prod := options.SanitizeProductSelection(rows, co, *product)
	if *product != "" && prod == "" {
		log.Printf("product %q is not offered by %q, ignoring", *product, co)
	}

	ctx := context.Background()
	var out []byte
	switch strings.ToLower(*format) {
	case "csv":
		var buf bytes.Buffer
		err = export.WriteCSV(&buf, summaries)
		out = buf.Bytes()
	case "json":
		out, err = json.MarshalIndent(map[string]any{
			"params":    p,
			"kpis":      insights.ComputeKPIs(summaries),
			"summaries": summaries,
		}, "", "  ")
	case "parquet":
		if *outputPath == "" {
			log.Fatal("-output is required for parquet")
		}
		if err := export.WriteParquetFile(*outputPath, summaries); err != nil {
			log.Fatalf("write parquet: %v", err)
		}
		return
	case "markdown", "md", "html", "pdf":
		md := export.BuildMarkdown(export.ReportInput{
			GeneratedAt: time.Now(),
			Params:      p,
			KPIs:        insights.ComputeKPIs(summaries),
			Summaries:   summaries,
			Tips:        talkingPoints(ctx, *useLLM, summaries, co, prod),
		})
		switch strings.ToLower(*format) {
		case "html":
			var page string
			page, err = export.RenderHTML("", md)
			out = []byte(page)
		case "pdf":
			if *outputPath == "" {
				log.Fatal("-output is required for pdf")
			}
			out, err = export.NewChromiumPDFRenderer("").Render(ctx, "", md)
		default:
			out = []byte(md)
		}
	default:
		log.Fatalf("unsupported -format %q", *format)
	}
	if err != nil {
		log.Fatalf("render %s: %v", *format, err)
	}
	if err := writeOutput(*outputPath, out); err != nil {
		log.Fatalf("write output: %v", err)
	}
}

func talkingPoints(ctx context.Context, useLLM bool, summaries []insights.ProviderSummary, company, product string) map[string][]string {
	var gen recommend.Generator
	if useLLM {
		g, err := recommend.NewAnthropicGeneratorFromEnv()
		if err != nil {
			log.Printf("talking point generator unavailable, using rules: %v", err)
		} else {
			gen = g
		}
	}
	tips := make(map[string][]string, len(summaries))
	for _, s := range summaries {
		tips[s.HCPID] = recommend.Recommend(ctx, gen, s, company, product).Tips
	}
	return tips
}

func writeOutput(outputPath string, data []byte) error {
	if outputPath == "" {
		_, err := fmt.Print(string(data))
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}
