package config

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/report"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "output.db.dsn",
// "tables.orders.contract.key[0]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline lints a decoded Pipeline (after ApplyDefaults). It checks
// cross-field consistency the JSON Schema cannot express and never mutates p.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and the run manifest",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	contracts := p.Contracts()
	issues = append(issues, validateTables(p.Tables, contracts)...)
	issues = append(issues, validateImputation(p.Imputations(), contracts)...)
	issues = append(issues, validateReports(p.Reports)...)
	issues = append(issues, validateOutput(p.Output)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.Dir) == "" {
			issues = append(issues, Issue{SeverityError, "source.dir", "file source requires a directory"})
		}
	case "s3":
		if strings.TrimSpace(s.S3.Bucket) == "" {
			issues = append(issues, Issue{SeverityError, "source.s3.bucket", "s3 source requires a bucket"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "source.kind", fmt.Sprintf("unknown source kind %q (want file or s3)", s.Kind)})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	if p.Kind != "csv" {
		issues = append(issues, Issue{SeverityError, "parser.kind", fmt.Sprintf("unknown parser kind %q", p.Kind)})
	}
	if c := p.Options.String("comma", ""); c != "" && utf8.RuneCountInString(c) != 1 {
		issues = append(issues, Issue{SeverityError, "parser.options.comma", fmt.Sprintf("comma must be a single character, got %q", c)})
	}
	return issues
}

func validateTables(tables map[string]TableConfig, contracts map[string]schema.Contract) []Issue {
	var issues []Issue
	for _, name := range sortedKeys(tables) {
		tc := tables[name]
		base := "tables." + name
		c, ok := contracts[name]
		if !ok {
			issues = append(issues, Issue{SeverityWarning, base, fmt.Sprintf("unknown table %q has no contract and is ignored", name)})
			continue
		}
		switch tc.DedupPolicy {
		case "", "merge", "keep-first", "keep-last":
		default:
			issues = append(issues, Issue{SeverityError, base + ".dedup_policy", fmt.Sprintf("unknown dedup policy %q", tc.DedupPolicy)})
		}
		for raw, col := range tc.HeaderMap {
			if _, ok := c.Field(col); !ok {
				issues = append(issues, Issue{SeverityWarning, base + ".header_map", fmt.Sprintf("%q maps to %q, which is not a contract field", raw, col)})
			}
		}
		if tc.Contract != nil {
			issues = append(issues, validateContract(base+".contract", c, contracts)...)
		}
	}
	return issues
}

func validateContract(path string, c schema.Contract, contracts map[string]schema.Contract) []Issue {
	var issues []Issue
	seen := map[string]bool{}
	for i, f := range c.Fields {
		if seen[f.Name] {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("%s.fields[%d]", path, i), fmt.Sprintf("duplicate field %q", f.Name)})
		}
		seen[f.Name] = true
		if f.Type != "" && schema.NormalizeKind(f.Type) == table.Text && !isTextAlias(f.Type) {
			issues = append(issues, Issue{SeverityWarning, fmt.Sprintf("%s.fields[%d].type", path, i), fmt.Sprintf("type %q is read as text", f.Type)})
		}
		if f.References != "" {
			tbl, col, ok := f.Ref()
			if !ok {
				issues = append(issues, Issue{SeverityError, fmt.Sprintf("%s.fields[%d].references", path, i), "references must be table.column"})
				continue
			}
			target, ok := contracts[tbl]
			if !ok {
				issues = append(issues, Issue{SeverityWarning, fmt.Sprintf("%s.fields[%d].references", path, i), fmt.Sprintf("unknown table %q", tbl)})
			} else if _, ok := target.Field(col); !ok {
				issues = append(issues, Issue{SeverityWarning, fmt.Sprintf("%s.fields[%d].references", path, i), fmt.Sprintf("%s has no column %q", tbl, col)})
			}
		}
	}
	for i, k := range c.Key {
		if !seen[k] {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("%s.key[%d]", path, i), fmt.Sprintf("key column %q is not a field", k)})
		}
	}
	return issues
}

func isTextAlias(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "text", "string", "varchar":
		return true
	}
	return false
}

func validateImputation(imps []schema.Imputation, contracts map[string]schema.Contract) []Issue {
	var issues []Issue
	for i, imp := range imps {
		path := fmt.Sprintf("imputation[%d]", i)
		c, ok := contracts[imp.Table]
		if !ok {
			issues = append(issues, Issue{SeverityError, path + ".table", fmt.Sprintf("unknown table %q", imp.Table)})
			continue
		}
		f, ok := c.Field(imp.Column)
		switch {
		case !ok:
			issues = append(issues, Issue{SeverityError, path + ".column", fmt.Sprintf("%s has no column %q", imp.Table, imp.Column)})
		case f.Kind() != table.Int && f.Kind() != table.Float:
			issues = append(issues, Issue{SeverityError, path + ".column", fmt.Sprintf("%s.%s is %s; only numeric columns can be imputed", imp.Table, imp.Column, f.Kind())})
		}
		if _, ok := c.Field(imp.GroupBy); !ok {
			issues = append(issues, Issue{SeverityError, path + ".group_by", fmt.Sprintf("%s has no column %q", imp.Table, imp.GroupBy)})
		}
	}
	return issues
}

func validateReports(o report.Options) []Issue {
	var issues []Issue
	if o.TopFraction < 0 || o.TopFraction > 1 {
		issues = append(issues, Issue{SeverityError, "reports.top_fraction", fmt.Sprintf("top_fraction=%g must be in (0, 1]", o.TopFraction)})
	}
	if o.BandLow > o.BandHigh {
		issues = append(issues, Issue{SeverityError, "reports.band_low", fmt.Sprintf("band_low=%g exceeds band_high=%g", o.BandLow, o.BandHigh)})
	}
	for _, n := range []struct {
		path string
		v    int
	}{
		{"reports.products_per_month", o.ProductsPerMonth},
		{"reports.min_reviews", o.MinReviews},
		{"reports.recurring_min_orders", o.RecurringMinOrders},
		{"reports.low_stock_limit", o.LowStockLimit},
	} {
		if n.v < 0 {
			issues = append(issues, Issue{SeverityError, n.path, "must not be negative"})
		}
	}
	return issues
}

func validateOutput(o Output) []Issue {
	var issues []Issue
	if strings.TrimSpace(o.Dir) == "" {
		issues = append(issues, Issue{SeverityError, "output.dir", "output.dir must not be empty"})
	}
	db := false
	for i, f := range o.Formats {
		switch f {
		case "parquet", "csv", "xlsx":
		case "db":
			db = true
		default:
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("output.formats[%d]", i), fmt.Sprintf("unknown format %q", f)})
		}
	}
	switch o.Compression {
	case "", "snappy", "gzip", "zstd", "none":
	default:
		issues = append(issues, Issue{SeverityError, "output.compression", fmt.Sprintf("unknown compression %q", o.Compression)})
	}
	if db {
		if o.DB.Kind == "" {
			issues = append(issues, Issue{SeverityError, "output.db.kind", "db output requires a kind"})
		}
		if strings.TrimSpace(o.DB.DSN) == "" {
			issues = append(issues, Issue{SeverityError, "output.db.dsn", "db output requires a dsn (or " + EnvDBDSN + ")"})
		}
	} else if o.DB.Kind != "" || o.DB.DSN != "" {
		issues = append(issues, Issue{SeverityWarning, "output.db", "db is configured but \"db\" is not among output.formats"})
	}
	if o.S3.Bucket == "" && (o.S3.Prefix != "" || o.S3.Endpoint != "") {
		issues = append(issues, Issue{SeverityWarning, "output.s3", "s3 settings without a bucket are ignored"})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "pushgateway backend requires a URL (or " + EnvPushgatewayURL + ")"})
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, Issue{SeverityError, "metrics.datadog_addr", "datadog backend requires an address (or " + EnvDatadogAddr + ")"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "metrics.backend", fmt.Sprintf("unknown metrics backend %q", m.Backend)})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.ReaderWorkers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.reader_workers", "reader_workers must not be negative"})
	}
	if r.BatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.batch_size", "batch_size must not be negative"})
	}
	return issues
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
