package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	analysisapp "intelliwatt/internal/analysis/application"
	"intelliwatt/internal/audit"
	"intelliwatt/internal/auth"
	"intelliwatt/internal/calendar"
	"intelliwatt/internal/config"
	meterdataapp "intelliwatt/internal/meterdata/application"
	meterdatapostgres "intelliwatt/internal/meterdata/infrastructure/postgres"
	"intelliwatt/internal/observability/metrics"
	planspostgres "intelliwatt/internal/plans/infrastructure/postgres"
	pricingapp "intelliwatt/internal/pricing/application"
	pricinghttp "intelliwatt/internal/pricing/interfaces/http"
	ratespostgres "intelliwatt/internal/rates/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init()

	cal, err := calendar.NewResolver(cfg.Zone)
	if err != nil {
		logger.Fatalf("calendar resolver error: %v", err)
	}

	auditRepo := audit.NewRepository(db)

	var intervalOpts []meterdatapostgres.RepositoryOption
	if cfg.Tables.Intervals != "" {
		intervalOpts = append(intervalOpts, meterdatapostgres.WithIntervalTable(cfg.Tables.Intervals))
	}
	intervalRepo := meterdatapostgres.NewIntervalRepository(db, intervalOpts...)

	var tdspOpts []ratespostgres.TdspOption
	if cfg.Tables.TdspRates != "" {
		tdspOpts = append(tdspOpts, ratespostgres.WithTdspTable(cfg.Tables.TdspRates))
	}
	tdspRepo := ratespostgres.NewTdspRepository(db, tdspOpts...)

	var templateOpts []planspostgres.TemplateOption
	if cfg.Tables.Templates != "" {
		templateOpts = append(templateOpts, planspostgres.WithTemplateTable(cfg.Tables.Templates))
	}
	templateRepo := planspostgres.NewTemplateRepository(db, templateOpts...)

	ingestService, err := meterdataapp.NewIngestApplicationService(intervalRepo, cal, calendar.AmbiguousPolicy(cfg.AmbiguousPolicy), logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}
	usageService, err := analysisapp.NewUsageApplicationService(intervalRepo, cal)
	if err != nil {
		logger.Fatalf("usage service error: %v", err)
	}
	estimateService, err := pricingapp.NewEstimateApplicationService(usageService, tdspRepo, cal)
	if err != nil {
		logger.Fatalf("estimate service error: %v", err)
	}

	ingestHandler, err := pricinghttp.NewIngestHandler(ingestService)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	estimateHandler, err := pricinghttp.NewEstimateHandler(estimateService, auditRepo)
	if err != nil {
		logger.Fatalf("estimate handler error: %v", err)
	}
	simulateHandler, err := pricinghttp.NewSimulateHandler(ingestService, cal, auditRepo)
	if err != nil {
		logger.Fatalf("simulate handler error: %v", err)
	}
	templateHandler, err := pricinghttp.NewTemplateHandler(templateRepo, auditRepo)
	if err != nil {
		logger.Fatalf("template handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), cfg.IngestSkew)

	mux := http.NewServeMux()
	mux.Handle("/ingest/smt/csv", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/ingest/greenbutton/xml", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/ingest/readings", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/estimates", estimateHandler)
	mux.Handle("/api/v1/estimates/", estimateHandler)
	mux.Handle("/api/v1/usage/simulate", simulateHandler)
	mux.Handle("/api/v1/templates", templateHandler)
	mux.Handle("/api/v1/templates/resolve", templateHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
