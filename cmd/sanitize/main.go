// Command sanitize runs the disaster-loss sanitation pipeline. It loads the
// pipeline config, optionally wires a metrics backend, opens the configured
// store, and executes either an import run (spreadsheets from the inbox) or
// a resubmission run (corrected quarantine reports).
//
// Usage:
//
//	sanitize -config configs/pipeline.json [import|resubmit]
//	sanitize -config configs/pipeline.json -validate
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/config"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/ingest"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/metrics"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/metrics/prompush"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/reconcile"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/storage"

	// Register all storage backends with the factory; config picks one.
	_ "github.com/MIS-WV-DA-VI/risk-analysis/internal/storage/all"
)

func main() {
	var (
		cfgPath        string
		metricsBackend string
		pushGatewayURL string
		validateOnly   bool
	)
	flag.StringVar(&cfgPath, "config", "configs/pipeline.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackend, "metrics-backend", "none", "metrics backend (pushgateway, none)")
	flag.StringVar(&pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validateOnly, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("configuration is invalid: %s", cfgPath)
	}
	if validateOnly {
		log.Printf("configuration is valid: %s", cfgPath)
		return
	}

	initMetrics(p.Job, metricsBackend, pushGatewayURL, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()

	var repo storage.Repository
	if p.Storage.Kind != "" {
		repo, err = storage.Open(ctx, p.Storage.Kind, storage.Config{
			DSN:             p.Storage.DSN,
			CleanTable:      p.Storage.CleanTable,
			QuarantineTable: p.Storage.QuarantineTable,
			AutoCreateTable: p.Storage.AutoCreateTable,
		})
		if err != nil {
			fatalf("open storage: %v", err)
		}
		defer repo.Close()
	}

	var lookup *reconcile.Lookup
	if p.Lookup.Path != "" {
		lookup, err = reconcile.LoadLookup(p.Lookup.Path)
		if err != nil {
			fatalf("load PSGC lookup: %v", err)
		}
		log.Printf("loaded PSGC lookup with %d entries", lookup.Len())
	}

	runner := &ingest.Runner{Cfg: p, Repo: repo, Lookup: lookup}

	command := flag.Arg(0)
	switch command {
	case "", "import":
		err = runner.RunImport(ctx)
	case "resubmit":
		err = runner.RunResubmit(ctx)
	default:
		fatalf("unknown command %q (want import or resubmit)", command)
	}
	if err != nil {
		fatalf("%s run failed: %v", commandName(command), err)
	}
}

func commandName(c string) string {
	if c == "" {
		return "import"
	}
	return c
}

func initMetrics(job, backendName, gwURL string, verbose bool) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=pushgateway url=%s job=%s", gwURL, job)
		metrics.SetBackend(b)
	case "", "none":
		if verbose {
			log.Printf("metrics: disabled")
		}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}
