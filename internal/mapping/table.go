package mapping

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/a3tai/sf86-validator/internal/formdata"
)

// ErrEmptyFieldID is returned for a blank PDF field identifier
var ErrEmptyFieldID = errors.New("mapping: pdf field id cannot be empty")

var validate = validator.New()

// Table is an immutable, bidirectional mapping table. It is safe for
// concurrent use once built.
type Table struct {
	name     string
	entries  []Entry
	ranges   []SectionRange
	byUIPath map[string]int
	byPDFID  map[string]int
	byPage   map[int][]int
	sections map[int][]int
}

// New validates doc and builds a table from it. Entry order is kept as
// declared.
func New(doc Document) (*Table, error) {
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("mapping: invalid table %q: %w", doc.Name, err)
	}

	t := &Table{
		name:     doc.Name,
		entries:  make([]Entry, 0, len(doc.Fields)),
		ranges:   append([]SectionRange(nil), doc.Sections...),
		byUIPath: make(map[string]int, len(doc.Fields)),
		byPDFID:  make(map[string]int, len(doc.Fields)),
		byPage:   make(map[int][]int),
		sections: make(map[int][]int),
	}

	for i, e := range doc.Fields {
		e.UIPath = strings.TrimSpace(e.UIPath)
		e.PDFFieldID = strings.TrimSpace(e.PDFFieldID)

		path, err := formdata.ParsePath(e.UIPath)
		if err != nil {
			return nil, fmt.Errorf("mapping: entry %d: %w", i, err)
		}
		derived, err := sectionOf(path)
		if err != nil {
			return nil, fmt.Errorf("mapping: entry %d: %w", i, err)
		}
		switch {
		case e.Section == 0:
			e.Section = derived
		case e.Section != derived:
			return nil, fmt.Errorf("mapping: entry %d: section %d does not match path %q", i, e.Section, e.UIPath)
		}

		if !t.pageInSection(e.Section, e.Page) {
			return nil, fmt.Errorf("mapping: entry %d: page %d is outside section %d", i, e.Page, e.Section)
		}

		if prev, dup := t.byPDFID[e.PDFFieldID]; dup {
			return nil, fmt.Errorf("mapping: pdf field %q mapped twice (entries %d and %d)", e.PDFFieldID, prev, i)
		}

		idx := len(t.entries)
		if !e.Legacy {
			if prev, dup := t.byUIPath[e.UIPath]; dup && !t.entries[prev].Legacy {
				return nil, fmt.Errorf("mapping: ui path %q has two active mappings (entries %d and %d)", e.UIPath, prev, i)
			}
			t.byUIPath[e.UIPath] = idx
		} else if _, ok := t.byUIPath[e.UIPath]; !ok {
			t.byUIPath[e.UIPath] = idx
		}

		t.entries = append(t.entries, e)
		t.byPDFID[e.PDFFieldID] = idx
		t.byPage[e.Page] = append(t.byPage[e.Page], idx)
		t.sections[e.Section] = append(t.sections[e.Section], idx)
	}

	return t, nil
}

// pageInSection only constrains sections that declare a range
func (t *Table) pageInSection(section, page int) bool {
	declared := false
	for _, r := range t.ranges {
		if r.Section != section {
			continue
		}
		declared = true
		if r.Contains(page) {
			return true
		}
	}
	return !declared
}

// sectionOf reads the section number from a leading "sectionN" key
func sectionOf(p formdata.Path) (int, error) {
	head := p[0].Key
	digits, ok := strings.CutPrefix(head, "section")
	if !ok {
		return 0, fmt.Errorf("path %q does not start with a section key", p.String())
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("path %q has an invalid section key %q", p.String(), head)
	}
	return n, nil
}

// Name returns the table name
func (t *Table) Name() string {
	return t.name
}

// Len returns the number of entries, legacy ones included
func (t *Table) Len() int {
	return len(t.entries)
}

// MapUIPathToPDFField returns the PDF field bound to uiPath. The active
// mapping wins; a path that only has legacy mappings resolves to the first
// one declared. A miss is not an error.
func (t *Table) MapUIPathToPDFField(uiPath string) (string, bool, error) {
	if _, err := formdata.ParsePath(uiPath); err != nil {
		return "", false, fmt.Errorf("mapping: invalid ui path: %w", err)
	}
	idx, ok := t.byUIPath[strings.TrimSpace(uiPath)]
	if !ok {
		return "", false, nil
	}
	return t.entries[idx].PDFFieldID, true, nil
}

// MapPDFFieldToUIPath is the reverse lookup. Legacy entries resolve to the
// path they were declared with.
func (t *Table) MapPDFFieldToUIPath(pdfFieldID string) (string, bool, error) {
	e, ok, err := t.EntryForPDFField(pdfFieldID)
	if err != nil || !ok {
		return "", ok, err
	}
	return e.UIPath, true, nil
}

// EntryForPDFField returns the whole entry for a PDF field name
func (t *Table) EntryForPDFField(pdfFieldID string) (Entry, bool, error) {
	id := strings.TrimSpace(pdfFieldID)
	if id == "" {
		return Entry{}, false, ErrEmptyFieldID
	}
	idx, ok := t.byPDFID[id]
	if !ok {
		return Entry{}, false, nil
	}
	return t.entries[idx], true, nil
}

// FieldsForPage returns the entries rendered on page in declaration order
func (t *Table) FieldsForPage(page int) []Entry {
	return t.collect(t.byPage[page])
}

// Entries returns a section's entries in declaration order
func (t *Table) Entries(section int) []Entry {
	return t.collect(t.sections[section])
}

// All returns every entry in declaration order
func (t *Table) All() []Entry {
	return append([]Entry(nil), t.entries...)
}

func (t *Table) collect(idx []int) []Entry {
	out := make([]Entry, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.entries[i])
	}
	return out
}

// Sections lists the sections that have at least one entry, ascending
func (t *Table) Sections() []int {
	out := make([]int, 0, len(t.sections))
	for s := range t.sections {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// SectionForPage returns the section of the first declared range that
// contains page.
func (t *Table) SectionForPage(page int) (int, bool) {
	for _, r := range t.ranges {
		if r.Contains(page) {
			return r.Section, true
		}
	}
	return 0, false
}

// PageRange returns the inclusive page span of a section
func (t *Table) PageRange(section int) (SectionRange, bool) {
	for _, r := range t.ranges {
		if r.Section == section {
			return r, true
		}
	}
	return SectionRange{}, false
}
