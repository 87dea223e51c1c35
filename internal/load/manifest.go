package load

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/extract"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/transformer"
)

// ManifestFile is the manifest's file name inside a run directory.
const ManifestFile = "manifest.json"

// OutputEntry records one written table.
type OutputEntry struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// Manifest describes one run.
type Manifest struct {
	RunID    string    `json:"run_id"`
	Job      string    `json:"job"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Source   string    `json:"source,omitempty"`

	Inputs  []extract.Profile `json:"inputs"`
	Missing []string          `json:"missing_inputs,omitempty"`

	Formats []string      `json:"formats"`
	Outputs []OutputEntry `json:"outputs"`

	Transform *transformer.Report `json:"transform,omitempty"`
}

// WriteManifest writes m as indented JSON.
func WriteManifest(path string, m *Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}
