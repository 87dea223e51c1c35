// Command probe inspects a raw extract against the table contracts and prints
// a starter "tables" block with suggested header maps.
//
// Usage:
//
//	probe -config pipeline.yaml [-dir data/raw] [-json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/config"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/extract"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/objectstore"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/probe"
)

func main() {
	cfgPath := flag.String("config", "", "pipeline config (json or yaml); defaults when empty")
	dir := flag.String("dir", "", "raw extract directory (overrides source.dir)")
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the config")
	asJSON := flag.Bool("json", false, "print the full report as JSON")
	flag.Parse()

	if err := config.LoadEnv(*envFile, *envFile == ".env"); err != nil {
		log.Fatalf("probe: %v", err)
	}
	p, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("probe: %v", err)
	}
	p.ApplyEnv(os.Getenv)
	if *dir != "" {
		p.Source.Kind = "file"
		p.Source.Dir = *dir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := openSource(ctx, p)
	if err != nil {
		log.Fatalf("probe: %v", err)
	}
	rep, err := probe.Inspect(ctx, src, p.Contracts(), extract.Options{
		CSV: extract.CSVOptions{
			Comma:     p.Parser.Options.Rune("comma", ','),
			TrimSpace: p.Parser.Options.Bool("trim_space", false),
			HeaderMap: p.Parser.Options.StringMap("header_map"),
		},
		Workers: p.Runtime.ReaderWorkers,
	})
	if err != nil {
		log.Fatalf("probe: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("probe: %v", err)
		}
	} else {
		printSummary(os.Stderr, rep)
		if err := printStarter(os.Stdout, rep); err != nil {
			log.Fatalf("probe: %v", err)
		}
	}
	if !rep.Runnable() {
		os.Exit(1)
	}
}

func openSource(ctx context.Context, p *config.Pipeline) (extract.Source, error) {
	if p.Source.Kind == "s3" {
		return objectstore.New(ctx, p.Source.S3)
	}
	return extract.NewFileSource(p.Source.Dir, p.Files()), nil
}

func printSummary(w io.Writer, rep *probe.Report) {
	for _, t := range rep.Tables {
		switch {
		case !t.Found && t.Required:
			fmt.Fprintf(w, "%-12s MISSING (required)\n", t.Table)
			continue
		case !t.Found:
			fmt.Fprintf(w, "%-12s missing (optional)\n", t.Table)
			continue
		}
		status := "ok"
		if !t.Runnable() {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%-12s %-4s rows=%d matched=%d", t.Table, status, t.Profile.Rows, len(t.Matched))
		if len(t.MissingRequired) > 0 {
			fmt.Fprintf(w, " missing_required=%s", strings.Join(t.MissingRequired, ","))
		}
		if len(t.MissingOptional) > 0 {
			fmt.Fprintf(w, " missing_optional=%s", strings.Join(t.MissingOptional, ","))
		}
		if len(t.Unknown) > 0 {
			fmt.Fprintf(w, " unknown=%s", strings.Join(t.Unknown, ","))
		}
		fmt.Fprintln(w)
	}
}

// printStarter writes the suggested header maps as a pipeline config
// fragment. Nothing is written when there is nothing to suggest.
func printStarter(w io.Writer, rep *probe.Report) error {
	maps := rep.HeaderMaps()
	if len(maps) == 0 {
		return nil
	}
	tables := map[string]any{}
	for name, hm := range maps {
		tables[name] = map[string]any{"header_map": hm}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"tables": tables}); err != nil {
		return err
	}
	return enc.Close()
}
