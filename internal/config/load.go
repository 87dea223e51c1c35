package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed schema/pipeline.schema.json
var embeddedSchema []byte

const schemaURL = "https://github.com/Gerardo1909/ecommerce-reporting-etl/schemas/pipeline.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func pipelineSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(embeddedSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parse embedded schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Env variables that override the loaded document.
const (
	EnvSourceDir      = "ETL_SOURCE_DIR"
	EnvOutputDir      = "ETL_OUTPUT_DIR"
	EnvDBDSN          = "ETL_DB_DSN"
	EnvMetricsBackend = "METRICS_BACKEND"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvDatadogAddr    = "DATADOG_ADDR"
)

// Load reads a pipeline file, validates it against the embedded JSON Schema,
// decodes it and applies defaults. The format follows the extension: .json,
// .yaml or .yml. An empty path yields the default pipeline.
func Load(path string) (*Pipeline, error) {
	var p Pipeline
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var format string
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			format = "json"
		case ".yaml", ".yml":
			format = "yaml"
		default:
			return nil, fmt.Errorf("config %s: unsupported extension (want .json, .yaml or .yml)", path)
		}
		if err := Decode(b, format, &p); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	p.ApplyDefaults()
	return &p, nil
}

// Decode validates and decodes a JSON or YAML document into p. YAML is
// converted to JSON first so both formats share the schema and the json
// tags.
func Decode(b []byte, format string, p *Pipeline) error {
	js := b
	if format == "yaml" {
		var doc any
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return fmt.Errorf("yaml: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		var err error
		if js, err = json.Marshal(doc); err != nil {
			return fmt.Errorf("yaml to json: %w", err)
		}
	}
	if len(bytes.TrimSpace(js)) == 0 {
		js = []byte("{}")
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(js))
	if err != nil {
		return fmt.Errorf("json: %w", err)
	}
	sch, err := pipelineSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &SchemaViolation{Causes: flatten(ve, message.NewPrinter(language.English))}
		}
		return err
	}
	if err := json.Unmarshal(js, p); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// SchemaViolation lists the places where a document breaks the pipeline
// schema.
type SchemaViolation struct {
	Causes []Issue
}

func (e *SchemaViolation) Error() string {
	msgs := make([]string, len(e.Causes))
	for i, c := range e.Causes {
		msgs[i] = c.Path + ": " + c.Message
	}
	return "schema: " + strings.Join(msgs, "; ")
}

// flatten collects the leaf errors of a validation error tree.
func flatten(ve *jsonschema.ValidationError, pr *message.Printer) []Issue {
	if len(ve.Causes) == 0 {
		path := "/" + strings.Join(ve.InstanceLocation, "/")
		return []Issue{{Severity: SeverityError, Path: path, Message: ve.ErrorKind.LocalizedString(pr)}}
	}
	var out []Issue
	for _, c := range ve.Causes {
		out = append(out, flatten(c, pr)...)
	}
	return out
}

// LoadEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error when optional is true.
func LoadEnv(path string, optional bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment through getenv (os.Getenv
// in production).
func (p *Pipeline) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvSourceDir); v != "" {
		p.Source.Dir = v
	}
	if v := getenv(EnvOutputDir); v != "" {
		p.Output.Dir = v
	}
	if v := getenv(EnvDBDSN); v != "" {
		p.Output.DB.DSN = v
	}
	if v := getenv(EnvMetricsBackend); v != "" {
		p.Metrics.Backend = v
	}
	if v := getenv(EnvPushgatewayURL); v != "" {
		p.Metrics.PushgatewayURL = v
	}
	if v := getenv(EnvDatadogAddr); v != "" {
		p.Metrics.DatadogAddr = v
	}
}
