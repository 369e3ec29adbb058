// Package mapping holds the static association between logical form-data
// paths and SF-86 AcroForm field names.
package mapping

// FieldType determines how a field's value is coerced
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeDropdown FieldType = "dropdown"
	// FieldTypeUnknown tags push buttons, signatures and anything else with
	// no fillable value. It is never valid in a mapping table.
	FieldTypeUnknown FieldType = "unknown"
)

// Entry is one uiPath to pdfFieldId association
type Entry struct {
	UIPath     string    `json:"uiPath" yaml:"uiPath" validate:"required"`
	PDFFieldID string    `json:"pdfFieldId" yaml:"pdfFieldId" validate:"required"`
	Page       int       `json:"page" yaml:"page" validate:"min=1"`
	FieldType  FieldType `json:"fieldType" yaml:"fieldType" validate:"required,oneof=text checkbox radio dropdown"`
	Section    int       `json:"section,omitempty" yaml:"section,omitempty" validate:"min=0,max=30"`
	Legacy     bool      `json:"legacy,omitempty" yaml:"legacy,omitempty"`
	Note       string    `json:"note,omitempty" yaml:"note,omitempty"`
}

// SectionRange assigns an inclusive page range to a form section
type SectionRange struct {
	Section   int `json:"section" yaml:"section" validate:"min=1"`
	StartPage int `json:"startPage" yaml:"startPage" validate:"min=1"`
	EndPage   int `json:"endPage" yaml:"endPage" validate:"gtefield=StartPage"`
}

// Contains reports whether page falls inside the range
func (r SectionRange) Contains(page int) bool {
	return page >= r.StartPage && page <= r.EndPage
}

// Document is the on-disk form of a mapping table
type Document struct {
	Name     string         `json:"name" yaml:"name"`
	Sections []SectionRange `json:"sections" yaml:"sections" validate:"dive"`
	Fields   []Entry        `json:"fields" yaml:"fields" validate:"dive"`
}
