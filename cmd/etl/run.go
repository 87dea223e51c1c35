package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/cleaner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/config"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/extract"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/load"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/metrics"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/objectstore"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/transformer"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/validator"
)

// bucketStore is what the run needs from object storage.
type bucketStore interface {
	extract.Source
	load.Uploader
}

// Test seams.
var (
	newBucketStore = func(ctx context.Context, cfg objectstore.Config) (bucketStore, error) {
		return objectstore.New(ctx, cfg)
	}
	newRunID = func() string { return uuid.NewString() }
	now      = time.Now
)

// rejectLimit caps the rejected rows echoed in verbose mode.
const rejectLimit = 20

// runPipeline executes one run and returns the committed output directory.
func runPipeline(ctx context.Context, p *config.Pipeline, verbose bool) (string, error) {
	started := now().UTC()
	runID := newRunID()
	log.Printf("run: id=%s job=%s", runID, p.Job)

	src, err := openSource(ctx, p)
	if err != nil {
		return "", err
	}

	t0 := time.Now()
	ext, err := extract.Extract(ctx, src, p.TableNames(), extract.Options{
		CSV:     csvOptions(p.Parser),
		Workers: p.Runtime.ReaderWorkers,
	})
	metrics.RecordStep(p.Job, "extract", err, time.Since(t0))
	if err != nil {
		return "", err
	}

	rejects := newErrAgg(rejectLimit)
	out, err := transformer.Run(ext.Tables, transformConfig(p, rejects))
	if err != nil {
		return "", err
	}
	if verbose {
		logRejects(rejects)
	}

	t0 = time.Now()
	dir, err := writeOutputs(ctx, p, runID, started, ext, out)
	metrics.RecordStep(p.Job, "load", err, time.Since(t0))
	if err != nil {
		return "", err
	}

	if p.Output.S3.Bucket != "" {
		store, err := newBucketStore(ctx, p.Output.S3)
		if err != nil {
			return dir, fmt.Errorf("output s3: %w", err)
		}
		if err := load.Upload(ctx, store, dir, runID); err != nil {
			return dir, err
		}
	}
	return dir, nil
}

func openSource(ctx context.Context, p *config.Pipeline) (extract.Source, error) {
	switch p.Source.Kind {
	case "s3":
		s, err := newBucketStore(ctx, p.Source.S3)
		if err != nil {
			return nil, fmt.Errorf("source s3: %w", err)
		}
		return s, nil
	case "file", "":
		return extract.NewFileSource(p.Source.Dir, p.Files()), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", p.Source.Kind)
}

func describeSource(p *config.Pipeline) string {
	if p.Source.Kind == "s3" {
		return fmt.Sprintf("s3://%s/%s", p.Source.S3.Bucket, p.Source.S3.Prefix)
	}
	return p.Source.Dir
}

func csvOptions(pr config.Parser) extract.CSVOptions {
	return extract.CSVOptions{
		Comma:     pr.Options.Rune("comma", ','),
		TrimSpace: pr.Options.Bool("trim_space", false),
		HeaderMap: pr.Options.StringMap("header_map"),
	}
}

func transformConfig(p *config.Pipeline, rejects *errAgg) transformer.Config {
	return transformer.Config{
		Job:         p.Job,
		Contracts:   p.Contracts(),
		Imputations: p.Imputations(),
		Validator: validator.Options{
			DateLayout: p.Parser.Options.String("date_layout", ""),
			Reject: func(r validator.RejectedRow) {
				rejects.add(fmt.Sprintf("%s line %d: %s=%q %s", r.Table, r.Line, r.Column, r.Value, r.Reason))
			},
		},
		Cleaner: cleaner.Options{DedupPolicy: p.DedupPolicies()},
		Reports: p.Reports,
	}
}

// writeOutputs stages every table, then commits the run directory with its
// manifest. Any failure discards the staging directory.
func writeOutputs(ctx context.Context, p *config.Pipeline, runID string, started time.Time, ext *extract.Result, out *transformer.Output) (string, error) {
	l, err := load.New(load.Options{
		Job:         p.Job,
		Dir:         p.Output.Dir,
		Formats:     p.Output.Formats,
		Compression: p.Output.Compression,
		DB: load.DBOptions{
			Kind:      p.Output.DB.Kind,
			DSN:       p.Output.DB.DSN,
			Prefix:    p.Output.DB.Prefix,
			BatchSize: p.Runtime.BatchSize,
		},
		Keys: p.Keys(),
	}, runID)
	if err != nil {
		return "", err
	}
	if err := l.WriteAll(ctx, load.Processed, out.Cleaned()); err != nil {
		l.Abort()
		return "", err
	}
	if err := l.WriteAll(ctx, load.Reports, out.Reports.Tables); err != nil {
		l.Abort()
		return "", err
	}
	return l.Commit(&load.Manifest{
		Job:       p.Job,
		Started:   started,
		Source:    describeSource(p),
		Inputs:    ext.Profiles,
		Missing:   ext.Missing,
		Transform: &out.Report,
	})
}

// errAgg keeps the first few messages of a stream of rejects.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg { return &errAgg{limit: limit} }

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func logRejects(a *errAgg) {
	if a.count == 0 {
		return
	}
	log.Printf("validation rejects: %d (showing first %d)", a.count, len(a.first))
	for i, s := range a.first {
		log.Printf("  #%03d: %s", i+1, s)
	}
}
