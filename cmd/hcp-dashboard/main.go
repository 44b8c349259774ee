package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joelkehle/hcp-insights/internal/config"
	"github.com/joelkehle/hcp-insights/internal/export"
	"github.com/joelkehle/hcp-insights/internal/httpapi"
	"github.com/joelkehle/hcp-insights/internal/recommend"
	"github.com/joelkehle/hcp-insights/internal/store"
	"github.com/joelkehle/hcp-insights/internal/telemetry"
)

func main() {
	configFlag := flag.String("config", "", "path to YAML config file")
	dbFlag := flag.String("db", "", "path to SQLite database file (overrides DB_PATH env var)")
	addrFlag := flag.String("addr", "", "listen address (overrides PORT env var)")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.ApplyEnv()
	if *dbFlag != "" {
		cfg.Store.DBPath = *dbFlag
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatalf("telemetry setup: %v", err)
	}

	// Resolve backend: --db flag > DB_PATH env > store.backend.
	var st store.Store
	switch {
	case cfg.Store.DBPath != "":
		ss, err := store.NewSQLiteStore(cfg.Store.DBPath, store.Config{})
		if err != nil {
			log.Fatalf("failed to initialize sqlite store (%s): %v", cfg.Store.DBPath, err)
		}
		st = ss
		log.Printf("using sqlite store at %s", cfg.Store.DBPath)
	case cfg.Store.Backend == "persistent":
		ps, err := store.NewPersistentStore(cfg.Store.StateFile, store.Config{})
		if err != nil {
			log.Fatalf("failed to initialize persistent store (%s): %v", cfg.Store.StateFile, err)
		}
		st = ps
		log.Printf("using persistent store at %s", cfg.Store.StateFile)
	default:
		st = store.NewMemoryStore(store.Config{})
		log.Printf("using in-memory store")
	}
	defer st.Close()

	opts := httpapi.Options{
		Store: st,
		Defaults: httpapi.Defaults{
			TAFilter:     cfg.Defaults.TAFilter,
			LookbackDays: cfg.Defaults.LookbackDays,
			HorizonDays:  cfg.Defaults.HorizonDays,
			Company:      cfg.Defaults.Company,
			Product:      cfg.Defaults.Product,
		},
		MaxUploadBytes:     cfg.Server.MaxUploadBytes,
		ReportMaxProviders: cfg.Report.MaxProviders,
	}
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		gen, err := recommend.NewAnthropicGenerator(cfg.AI.APIKey,
			recommend.WithModel(cfg.AI.Model),
			recommend.WithMaxTokens(cfg.AI.MaxTokens))
		if err != nil {
			log.Printf("talking point generator disabled: %v", err)
		} else {
			opts.Generator = gen
			log.Printf("talking point generator enabled")
		}
	} else {
		log.Printf("talking point generator not configured, using rule-based fallback")
	}
	if cfg.Chat.Endpoint != "" {
		opts.Chat = recommend.NewChatClient(cfg.Chat.Endpoint, cfg.Chat.APIKey)
		log.Printf("chat endpoint configured at %s", cfg.Chat.Endpoint)
	}
	if pdf := export.NewChromiumPDFRenderer(cfg.Report.ChromePath); pdf.Available() {
		opts.PDF = pdf
	} else {
		log.Printf("no chromium found, pdf export disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewServer(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	log.Printf("hcp-dashboard listening on %s", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
