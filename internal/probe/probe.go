// Package probe inspects a raw extract against the table contracts before a
// run: which tables exist, which contract columns are missing, and which raw
// headers look like a contract column under another spelling. The result
// can be rendered as a starter "tables" block for the pipeline config.
package probe

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/cleaner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/extract"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// TableReport is the probe result of one contract.
type TableReport struct {
	Table    string `json:"table"`
	Required bool   `json:"required"`
	Found    bool   `json:"found"`

	Profile *extract.Profile `json:"profile,omitempty"`

	// Matched lists contract columns present in the raw header.
	Matched []string `json:"matched,omitempty"`
	// MissingRequired columns abort a run; MissingOptional become nulls.
	MissingRequired []string `json:"missing_required,omitempty"`
	MissingOptional []string `json:"missing_optional,omitempty"`
	// Unknown raw columns match no contract column.
	Unknown []string `json:"unknown,omitempty"`
	// HeaderMap suggests raw column → contract column renames.
	HeaderMap map[string]string `json:"header_map,omitempty"`
}

// Runnable reports whether the table would pass schema validation once the
// suggested header map is applied.
func (r TableReport) Runnable() bool {
	if !r.Found {
		return !r.Required
	}
	for _, col := range r.MissingRequired {
		if !mapped(r.HeaderMap, col) {
			return false
		}
	}
	return true
}

func mapped(m map[string]string, col string) bool {
	for _, v := range m {
		if v == col {
			return true
		}
	}
	return false
}

// Report is the probe result of a whole source.
type Report struct {
	Tables []TableReport `json:"tables"`
}

// Runnable reports whether every table is runnable.
func (r *Report) Runnable() bool {
	for _, t := range r.Tables {
		if !t.Runnable() {
			return false
		}
	}
	return true
}

// HeaderMaps returns the non-empty header map suggestions by table.
func (r *Report) HeaderMaps() map[string]map[string]string {
	out := map[string]map[string]string{}
	for _, t := range r.Tables {
		if len(t.HeaderMap) > 0 {
			out[t.Table] = t.HeaderMap
		}
	}
	return out
}

// Inspect reads every contract table from src and compares its header with
// the contract.
func Inspect(ctx context.Context, src extract.Source, contracts map[string]schema.Contract, opt extract.Options) (*Report, error) {
	names := schema.Ordered(contracts)
	ext, err := extract.Extract(ctx, src, names, opt)
	if err != nil {
		return nil, err
	}
	profiles := make(map[string]extract.Profile, len(ext.Profiles))
	for _, p := range ext.Profiles {
		profiles[p.Table] = p
	}

	rep := &Report{Tables: make([]TableReport, 0, len(names))}
	for _, name := range names {
		c := contracts[name]
		tr := TableReport{Table: name, Required: c.Required}
		t, ok := ext.Tables[name]
		if ok {
			tr.Found = true
			p := profiles[name]
			tr.Profile = &p
			compare(&tr, t, c)
		}
		rep.Tables = append(rep.Tables, tr)
	}
	return rep, nil
}

// compare fills the column sections of tr. A raw column whose compact form
// (folded, letters and digits only) equals that of a missing contract column
// becomes a header map suggestion.
func compare(tr *TableReport, t table.Table, c schema.Contract) {
	present := map[string]bool{}
	for _, col := range t.Columns {
		name := col.Name
		if m, ok := c.HeaderMap[name]; ok && m != "" {
			name = m
		}
		present[name] = true
	}

	byCompact := map[string]string{}
	for _, col := range t.Columns {
		if _, known := c.Field(col.Name); known {
			continue
		}
		if _, mappedAlready := c.HeaderMap[col.Name]; mappedAlready {
			continue
		}
		byCompact[compact(col.Name)] = col.Name
	}

	suggested := map[string]bool{}
	for _, f := range c.Fields {
		if present[f.Name] {
			tr.Matched = append(tr.Matched, f.Name)
			continue
		}
		if raw, ok := byCompact[compact(f.Name)]; ok {
			if tr.HeaderMap == nil {
				tr.HeaderMap = map[string]string{}
			}
			tr.HeaderMap[raw] = f.Name
			suggested[raw] = true
		}
		if f.Required {
			tr.MissingRequired = append(tr.MissingRequired, f.Name)
		} else {
			tr.MissingOptional = append(tr.MissingOptional, f.Name)
		}
	}
	for _, col := range t.Columns {
		if _, known := c.Field(col.Name); known {
			continue
		}
		if _, isMapped := c.HeaderMap[col.Name]; isMapped || suggested[col.Name] {
			continue
		}
		tr.Unknown = append(tr.Unknown, col.Name)
	}
	sort.Strings(tr.Unknown)
}

func compact(s string) string {
	var b strings.Builder
	for _, r := range cleaner.Fold(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
