package coverage

import (
	"github.com/a3tai/sf86-validator/internal/mapping"
	"github.com/a3tai/sf86-validator/internal/pdf/extraction"
)

// FieldStatus is one extracted field cross-referenced with the mapping table
type FieldStatus struct {
	PDFFieldID string            `json:"pdfFieldId"`
	UIPath     string            `json:"uiPath,omitempty"`
	Mapped     bool              `json:"mapped"`
	Legacy     bool              `json:"legacy,omitempty"`
	FieldType  mapping.FieldType `json:"fieldType"`
	Value      any               `json:"value"`
	HasValue   bool              `json:"hasValue"`
	Matched    bool              `json:"matched"`
}

// EntryLookup resolves PDF field names to mapping entries
type EntryLookup interface {
	EntryForPDFField(pdfFieldID string) (mapping.Entry, bool, error)
}

// CompareFields builds the per-field status list, in extraction order.
// Fields are joined to the table by ID only. A field is matched when its
// string value satisfies the coverage rule for any expected value.
func CompareFields(fields []extraction.ExtractedField, table EntryLookup, expected []string) []FieldStatus {
	want := Distinct(expected)
	out := make([]FieldStatus, 0, len(fields))

	for _, f := range fields {
		st := FieldStatus{
			PDFFieldID: f.PDFFieldID,
			FieldType:  f.FieldType,
			Value:      f.Value,
			HasValue:   f.HasValue(),
		}
		if table != nil {
			if e, ok, err := table.EntryForPDFField(f.PDFFieldID); err == nil && ok {
				st.UIPath = e.UIPath
				st.Mapped = true
				st.Legacy = e.Legacy
			}
		}
		if s, ok := f.StringValue(); ok && s != "" {
			for _, w := range want {
				if Matches([]string{s}, w) {
					st.Matched = true
					break
				}
			}
		}
		out = append(out, st)
	}
	return out
}

// Counts returns how many statuses are mapped and unmapped
func Counts(statuses []FieldStatus) (mapped, unmapped int) {
	for _, s := range statuses {
		if s.Mapped {
			mapped++
		} else {
			unmapped++
		}
	}
	return mapped, unmapped
}
