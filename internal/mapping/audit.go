package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReferenceField is one field of a section reference inventory, the
// field dump produced from the blank SF-86 form.
type ReferenceField struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Label string `json:"label" yaml:"label"`
	Type  string `json:"type" yaml:"type"`
	Page  int    `json:"page" yaml:"page"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Inventory is a section reference file
type Inventory struct {
	Fields []ReferenceField `json:"fields" yaml:"fields"`
}

// LoadInventory reads a section reference file (JSON or YAML)
func LoadInventory(path string) (Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Inventory{}, fmt.Errorf("mapping: read inventory %s: %w", path, err)
	}
	var inv Inventory
	if jsonErr := json.Unmarshal(data, &inv); jsonErr != nil {
		inv = Inventory{}
		if err := yaml.Unmarshal(data, &inv); err != nil {
			return Inventory{}, fmt.Errorf("mapping: parse inventory %s: %w", path, jsonErr)
		}
	}
	return inv, nil
}

// FieldAudit is the audit verdict for one reference field
type FieldAudit struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Label       string `json:"label,omitempty"`
	ID          string `json:"id,omitempty"`
	Page        int    `json:"page,omitempty"`
	UIPath      string `json:"uiPath,omitempty"`
	Implemented bool   `json:"implemented"`
}

// SubformCoverage groups reference fields by their enclosing subform
type SubformCoverage struct {
	Subform     string  `json:"subform"`
	Total       int     `json:"total"`
	Implemented int     `json:"implemented"`
	Percent     float64 `json:"percent"`
}

// AuditReport compares a section's mapping entries against its reference
// inventory.
type AuditReport struct {
	Section     int               `json:"section"`
	Total       int               `json:"total"`
	Implemented int               `json:"implemented"`
	Percent     float64           `json:"percent"`
	Fields      []FieldAudit      `json:"fields"`
	Missing     []FieldAudit      `json:"missing"`
	Orphans     []Entry           `json:"orphans"`
	Subforms    []SubformCoverage `json:"subforms"`
}

// Audit reports which reference fields of a section have a mapping, which
// do not, and which mapping entries point at fields the reference lacks.
func (t *Table) Audit(section int, inv Inventory) AuditReport {
	report := AuditReport{
		Section:  section,
		Fields:   make([]FieldAudit, 0, len(inv.Fields)),
		Missing:  []FieldAudit{},
		Orphans:  []Entry{},
		Subforms: []SubformCoverage{},
	}

	inReference := make(map[string]struct{}, len(inv.Fields))
	subformIdx := make(map[string]int)

	for _, rf := range inv.Fields {
		name := strings.TrimSpace(rf.Name)
		if name == "" {
			continue
		}
		if _, dup := inReference[name]; dup {
			continue
		}
		inReference[name] = struct{}{}

		fa := FieldAudit{Name: name, Type: rf.Type, Label: rf.Label, ID: rf.ID, Page: rf.Page}
		if e, ok, _ := t.EntryForPDFField(name); ok {
			fa.UIPath = e.UIPath
			fa.Implemented = true
		}

		report.Total++
		report.Fields = append(report.Fields, fa)
		if fa.Implemented {
			report.Implemented++
		} else {
			report.Missing = append(report.Missing, fa)
		}

		sub := Subform(name)
		i, ok := subformIdx[sub]
		if !ok {
			i = len(report.Subforms)
			subformIdx[sub] = i
			report.Subforms = append(report.Subforms, SubformCoverage{Subform: sub})
		}
		report.Subforms[i].Total++
		if fa.Implemented {
			report.Subforms[i].Implemented++
		}
	}

	for i := range report.Subforms {
		s := &report.Subforms[i]
		s.Percent = percent(s.Implemented, s.Total)
	}
	report.Percent = percent(report.Implemented, report.Total)

	for _, e := range t.Entries(section) {
		if _, ok := inReference[e.PDFFieldID]; !ok {
			report.Orphans = append(report.Orphans, e)
		}
	}

	return report
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// SplitFieldName splits a fully qualified field name on dots, keeping
// backslash-escaped dots (as in "Section9\.1-9\.4[0]") inside their part.
func SplitFieldName(name string) []string {
	var (
		parts []string
		sb    strings.Builder
	)
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '\\' && i+1 < len(name) && name[i+1] == '.':
			sb.WriteString(`\.`)
			i++
		case c == '.':
			parts = append(parts, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	return append(parts, sb.String())
}

// Subform returns the second part of a field name, the subform that
// groups a page's fields. Names without a subform return their root.
func Subform(name string) string {
	parts := SplitFieldName(name)
	if len(parts) < 3 {
		return parts[0]
	}
	return parts[1]
}
