package extraction

import (
	"github.com/a3tai/sf86-validator/internal/mapping"
)

// Rect is a widget's position and size in PDF user space
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ExtractedField is one AcroForm field observed in a rendered PDF.
// Value holds a string, a bool, or nil.
type ExtractedField struct {
	PDFFieldID string            `json:"pdfFieldId"`
	Page       int               `json:"page"`
	Label      string            `json:"label"`
	FieldType  mapping.FieldType `json:"fieldType"`
	Value      any               `json:"value"`
	Rect       *Rect             `json:"rect"`
	Section    *int              `json:"section"`
}

// HasValue reports whether the field counts as filled: a non-empty string
// or true.
func (f ExtractedField) HasValue() bool {
	switch v := f.Value.(type) {
	case string:
		return v != ""
	case bool:
		return v
	default:
		return false
	}
}

// StringValue returns the value when it is a string
func (f ExtractedField) StringValue() (string, bool) {
	s, ok := f.Value.(string)
	return s, ok
}

// ValidationReport is the extraction result for a single page
type ValidationReport struct {
	PageNumber       int              `json:"pageNumber"`
	TotalFields      int              `json:"totalFields"`
	FieldsWithValues int              `json:"fieldsWithValues"`
	FieldsEmpty      int              `json:"fieldsEmpty"`
	Fields           []ExtractedField `json:"fields"`
	Warnings         []string         `json:"warnings,omitempty"`
}

// NewValidationReport computes the counts once all fields are extracted
func NewValidationReport(page int, fields []ExtractedField, warnings []string) ValidationReport {
	r := ValidationReport{
		PageNumber:  page,
		TotalFields: len(fields),
		Fields:      fields,
		Warnings:    warnings,
	}
	if r.Fields == nil {
		r.Fields = []ExtractedField{}
	}
	for _, f := range fields {
		if f.HasValue() {
			r.FieldsWithValues++
		}
	}
	r.FieldsEmpty = r.TotalFields - r.FieldsWithValues
	return r
}

// Document is the whole-document extraction snapshot. Snapshots are shared
// through the cache and must not be modified.
type Document struct {
	PageCount int              `json:"pageCount"`
	Fields    []ExtractedField `json:"fields"`
	// Unattributed counts terminal fields whose widget page could not be
	// resolved. They appear in no page report.
	Unattributed int `json:"unattributed"`
	// Warnings holds recovered field read problems keyed by page
	Warnings map[int][]string `json:"warnings,omitempty"`
}

// PageFields returns copies of the fields attributed to page, in AcroForm
// enumeration order.
func (d *Document) PageFields(page int) []ExtractedField {
	out := make([]ExtractedField, 0)
	for _, f := range d.Fields {
		if f.Page == page {
			out = append(out, f)
		}
	}
	return out
}

// SectionResolver maps a page number to a form section
type SectionResolver interface {
	SectionForPage(page int) (int, bool)
}
