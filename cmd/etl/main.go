package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/config"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/metrics"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/metrics/datadog"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/metrics/prompush"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/transformer"

	// register all backends with the storage factory; output.db.kind picks one.
	_ "github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage/all"
)

// main loads the pipeline config, selects a metrics backend and executes one
// reporting run: extract → transform → load.
func main() {
	var (
		cfgPath           string
		envFile           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		datadogAddrFlg    string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "pipeline config path (.json, .yaml, .yml); empty uses the defaults")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config (missing file is ignored)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides config and METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides PUSHGATEWAY_URL)")
	flag.StringVar(&datadogAddrFlg, "datadog-addr", "", "DogStatsD address (overrides DATADOG_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	if err := config.LoadEnv(envFile, envFile == ".env"); err != nil {
		fatalf("%v", err)
	}
	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	p.ApplyEnv(os.Getenv)

	// Flags beat env and file.
	if metricsBackendFlg != "" {
		p.Metrics.Backend = metricsBackendFlg
	}
	if pushGatewayURLFlg != "" {
		p.Metrics.PushgatewayURL = pushGatewayURLFlg
	}
	if datadogAddrFlg != "" {
		p.Metrics.DatadogAddr = datadogAddrFlg
	}

	issues := config.ValidatePipeline(*p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", describeConfig(cfgPath))
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", describeConfig(cfgPath))
		os.Exit(0)
	}

	b, err := newMetricsBackend(p.Job, p.Metrics)
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", p.Metrics.Backend, err)
	} else if b != nil {
		log.Printf("metrics: backend=%s job_name=%s", p.Metrics.Backend, p.Job)
		metrics.SetBackend(b)
	} else if *verbose {
		log.Printf("metrics: disabled (backend=%q)", p.Metrics.Backend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	start := time.Now()

	if *verbose {
		log.Printf("pipeline: job=%s source=%s formats=%v dir=%s", p.Job, describeSource(p), p.Output.Formats, p.Output.Dir)
	}

	dir, runErr := runPipeline(ctx, p, *verbose)
	stop()

	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}
	if runErr != nil {
		var se *transformer.SchemaError
		if errors.As(runErr, &se) {
			log.Printf("schema error: %v", se)
			os.Exit(1)
		}
		log.Fatalf("%v", runErr)
	}
	log.Printf("completed run dir=%s in %s", dir, time.Since(start).Truncate(time.Millisecond))
}

// newMetricsBackend builds the configured backend; nil means metrics are off.
func newMetricsBackend(job string, m config.Metrics) (metrics.Backend, error) {
	switch m.Backend {
	case "pushgateway":
		return prompush.NewBackend(job, m.PushgatewayURL)
	case "datadog":
		return datadog.NewBackend(datadog.Config{
			Addr:       m.DatadogAddr,
			Namespace:  "ecommerce.",
			GlobalTags: []string{"job:" + job},
		})
	case "", "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown metrics backend %q", m.Backend)
}

func describeConfig(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
