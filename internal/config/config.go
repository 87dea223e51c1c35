// Package config defines the pipeline configuration of a reporting run and
// loads it from JSON or YAML files.
//
// Every field has a default, so an empty document (or no file at all) runs
// the built-in ecommerce contracts against data/raw and writes parquet and
// csv to data/output.
//
// Example (trimmed):
//
//	job: ecommerce-daily
//	source: { kind: file, dir: data/raw }
//	tables:
//	  customers: { header_map: { "Customer ID": customer_id } }
//	output:
//	  formats: [parquet, csv, xlsx, db]
//	  db: { kind: postgres, dsn: "postgresql://...", prefix: "reporting." }
package config

import (
	"encoding/json"
	"sort"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/objectstore"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/report"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
)

// Defaults applied by Load.
const (
	DefaultJob       = "ecommerce-etl"
	DefaultSourceDir = "data/raw"
	DefaultOutputDir = "data/output"
)

// DefaultFormats are written when output.formats is empty.
var DefaultFormats = []string{"parquet", "csv"}

// Pipeline is the top-level configuration document.
type Pipeline struct {
	// Job labels metrics, logs and the run manifest.
	Job string `json:"job"`

	Source Source `json:"source"`
	Parser Parser `json:"parser"`

	// Tables holds per-table overrides keyed by table name.
	Tables map[string]TableConfig `json:"tables,omitempty"`

	// Imputation replaces the built-in imputation list when present.
	Imputation []schema.Imputation `json:"imputation,omitempty"`

	Reports report.Options `json:"reports"`
	Output  Output         `json:"output"`
	Metrics Metrics        `json:"metrics"`
	Runtime RuntimeConfig  `json:"runtime"`
}

// Source selects where the daily extract is read from.
type Source struct {
	// Kind is "file" or "s3".
	Kind string `json:"kind"`
	// Dir is the local directory of the file source.
	Dir string `json:"dir,omitempty"`
	// S3 configures the "s3" source.
	S3 objectstore.Config `json:"s3,omitempty"`
}

// Parser configures CSV reading.
type Parser struct {
	// Kind is "csv".
	Kind string `json:"kind"`

	// Options keys: comma (string), trim_space (bool), date_layout (string).
	Options Options `json:"options"`
}

// TableConfig overrides one input table.
type TableConfig struct {
	// File replaces the default file name candidates.
	File string `json:"file,omitempty"`
	// HeaderMap maps raw header text to canonical column names.
	HeaderMap map[string]string `json:"header_map,omitempty"`
	// Contract replaces the built-in contract for this table.
	Contract *schema.Contract `json:"contract,omitempty"`
	// DedupPolicy is "merge" (default), "keep-first" or "keep-last".
	DedupPolicy string `json:"dedup_policy,omitempty"`
}

// Output configures the load stage.
type Output struct {
	Dir     string   `json:"dir"`
	Formats []string `json:"formats"`
	// Compression is the parquet codec: snappy, gzip, zstd or none.
	Compression string `json:"compression,omitempty"`
	DB          DB     `json:"db,omitempty"`
	// S3, when it names a bucket, receives a copy of every committed run.
	S3 objectstore.Config `json:"s3,omitempty"`
}

// DB configures the database sink of the "db" format.
type DB struct {
	// Kind is one of postgres, mysql, mssql, sqlite.
	Kind string `json:"kind,omitempty"`
	DSN  string `json:"dsn,omitempty"`
	// Prefix is prepended to table names, e.g. "reporting." or "etl_".
	Prefix string `json:"prefix,omitempty"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is pushgateway, datadog or none.
	Backend        string `json:"backend,omitempty"`
	PushgatewayURL string `json:"pushgateway_url,omitempty"`
	DatadogAddr    string `json:"datadog_addr,omitempty"`
}

// RuntimeConfig controls concurrency and batching.
type RuntimeConfig struct {
	// ReaderWorkers bounds concurrent table reads; 0 reads all at once.
	ReaderWorkers int `json:"reader_workers"`
	// BatchSize is the database insert batch.
	BatchSize int `json:"batch_size"`
}

// ApplyDefaults fills empty fields.
func (p *Pipeline) ApplyDefaults() {
	if p.Job == "" {
		p.Job = DefaultJob
	}
	if p.Source.Kind == "" {
		p.Source.Kind = "file"
	}
	if p.Source.Kind == "file" && p.Source.Dir == "" {
		p.Source.Dir = DefaultSourceDir
	}
	if p.Parser.Kind == "" {
		p.Parser.Kind = "csv"
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	if p.Output.Dir == "" {
		p.Output.Dir = DefaultOutputDir
	}
	if len(p.Output.Formats) == 0 {
		p.Output.Formats = append([]string(nil), DefaultFormats...)
	}
	if p.Output.Compression == "" {
		p.Output.Compression = "snappy"
	}
	if p.Metrics.Backend == "" {
		p.Metrics.Backend = "none"
	}
}

// Contracts returns the built-in contracts with the per-table overrides
// applied: a table contract replaces the default, a header map is merged
// into it.
func (p *Pipeline) Contracts() map[string]schema.Contract {
	out := schema.DefaultContracts()
	for name, tc := range p.Tables {
		c, ok := out[name]
		if tc.Contract != nil {
			c = *tc.Contract
			if c.Name == "" {
				c.Name = name
			}
			ok = true
		}
		if !ok {
			continue
		}
		if len(tc.HeaderMap) > 0 {
			merged := make(map[string]string, len(c.HeaderMap)+len(tc.HeaderMap))
			for k, v := range c.HeaderMap {
				merged[k] = v
			}
			for k, v := range tc.HeaderMap {
				merged[k] = v
			}
			c.HeaderMap = merged
		}
		out[name] = c
	}
	return out
}

// Imputations returns the configured imputations or the built-in list.
func (p *Pipeline) Imputations() []schema.Imputation {
	if p.Imputation != nil {
		return p.Imputation
	}
	return schema.DefaultImputations()
}

// Files returns the per-table file name overrides.
func (p *Pipeline) Files() map[string]string {
	out := map[string]string{}
	for name, tc := range p.Tables {
		if tc.File != "" {
			out[name] = tc.File
		}
	}
	return out
}

// DedupPolicies returns the per-table merge policy overrides.
func (p *Pipeline) DedupPolicies() map[string]string {
	out := map[string]string{}
	for name, tc := range p.Tables {
		if tc.DedupPolicy != "" {
			out[name] = tc.DedupPolicy
		}
	}
	return out
}

// TableNames lists the configured contracts in load order.
func (p *Pipeline) TableNames() []string { return schema.Ordered(p.Contracts()) }

// Keys returns each table's natural key.
func (p *Pipeline) Keys() map[string][]string {
	out := map[string][]string{}
	for name, c := range p.Contracts() {
		if len(c.Key) > 0 {
			out[name] = c.Key
		}
	}
	return out
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns the provided default
// when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. Used for the CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// Keys returns the option names, sorted.
func (o Options) Keys() []string {
	out := make([]string, 0, len(o))
	for k := range o {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UnmarshalJSON makes a missing or null "options" object decode to a
// non-nil, empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
