// Package transformer runs the transform stage of a reporting run:
// validate → clean → join → reports, strictly in sequence. Work inside a
// stage fans out per table or per report.
//
// Only a schema error stops a run. Every other data problem is recovered
// locally by the stage that finds it and collected into the Report returned
// next to the output tables.
package transformer

import (
	"log"
	"time"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/cleaner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/joiner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/metrics"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/quality"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/report"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/validator"
)

// SchemaError aborts a run; see quality.SchemaError.
type SchemaError = quality.SchemaError

// ErrSchema matches any SchemaError via errors.Is.
var ErrSchema = quality.ErrSchema

// Config parameterises one transform.
type Config struct {
	Job         string
	Contracts   map[string]schema.Contract
	Imputations []schema.Imputation
	Validator   validator.Options
	Cleaner     cleaner.Options
	Reports     report.Options
}

// DefaultConfig uses the built-in ecommerce contracts and imputations.
func DefaultConfig() Config {
	return Config{
		Job:         "ecommerce-etl",
		Contracts:   schema.DefaultContracts(),
		Imputations: schema.DefaultImputations(),
	}
}

// Output is the result of a successful transform.
type Output struct {
	// Tables are the cleaned input tables, one per contract.
	Tables map[string]table.Table
	// Reports are the computed report tables.
	Reports *report.Set
	Report  Report
}

// Cleaned returns the cleaned tables in contract order.
func (o *Output) Cleaned() []table.Table {
	out := make([]table.Table, 0, len(o.Tables))
	for _, n := range schema.TableNames {
		if t, ok := o.Tables[n]; ok {
			out = append(out, t)
		}
	}
	for n, t := range o.Tables {
		if !isStandard(n) {
			out = append(out, t)
		}
	}
	return out
}

func isStandard(name string) bool {
	for _, n := range schema.TableNames {
		if n == name {
			return true
		}
	}
	return false
}

// Run transforms raw extracts into cleaned tables and reports. raw is never
// modified. The only error is a *SchemaError.
func Run(raw map[string]table.Table, cfg Config) (*Output, error) {
	if cfg.Contracts == nil {
		cfg.Contracts = schema.DefaultContracts()
	}
	job := cfg.Job
	rep := Report{}

	start := time.Now()
	validated, vres, err := validator.ValidateAll(raw, cfg.Contracts, cfg.Validator)
	metrics.RecordStep(job, "validate", err, time.Since(start))
	if err != nil {
		log.Printf("transformer: validate failed: %v", err)
		return nil, err
	}
	rep.Validation = vres
	for _, r := range vres {
		metrics.RecordRows(job, "validated", r.Table, int64(r.RowsIn-r.RowsDropped))
		metrics.RecordRows(job, "dropped", r.Table, int64(r.RowsDropped))
	}

	start = time.Now()
	cleaned, cres := cleaner.CleanAll(validated, cfg.Contracts, cfg.Imputations, cfg.Cleaner)
	rep.Cleaning = cres
	rep.References = validator.CheckReferences(cleaned, cfg.Contracts)
	metrics.RecordStep(job, "clean", nil, time.Since(start))
	for _, r := range cres {
		metrics.RecordRows(job, "cleaned", r.Table, int64(r.RowsOut))
	}

	start = time.Now()
	view, jres := joiner.Join(cleaned)
	rep.Join = jres
	metrics.RecordStep(job, "join", nil, time.Since(start))

	start = time.Now()
	reports := report.Build(view, cleaned[schema.Reviews], cfg.Reports)
	rep.Signal = reports.Signal
	metrics.RecordStep(job, "report", nil, time.Since(start))
	metrics.RecordTopShare(job, reports.Signal.Share)
	if reports.Signal.TopCustomers > 0 && !reports.Signal.WithinBand {
		log.Printf("transformer: top customer share %.3f outside expected band [%.2f, %.2f]",
			reports.Signal.Share, reports.Signal.BandLow, reports.Signal.BandHigh)
	}

	rep.collect()
	for kind, n := range rep.IssueCounts() {
		metrics.RecordIssues(job, kind, int64(n))
	}
	log.Printf("transformer: %s", rep.Summary())

	return &Output{Tables: cleaned, Reports: reports, Report: rep}, nil
}
