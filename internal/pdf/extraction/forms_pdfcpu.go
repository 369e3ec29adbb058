// Package extraction reads AcroForm field values back out of rendered SF-86
// PDFs and attributes each field to the page its widget sits on.
package extraction

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/sync/singleflight"

	"github.com/a3tai/sf86-validator/internal/mapping"
	pdferrors "github.com/a3tai/sf86-validator/internal/pdf/errors"
)

// Button field flags (PDF 32000-1, table 226)
const (
	flagRadio      = 1 << 15
	flagPushbutton = 1 << 16
)

// maxFieldDepth bounds the /Kids recursion on malformed field trees
const maxFieldDepth = 32

// Extractor reads AcroForm fields with pdfcpu. It is safe for concurrent
// use; parsed documents are shared through its cache.
type Extractor struct {
	sections SectionResolver
	logger   *log.Logger
	cache    *DocumentCache
	group    singleflight.Group
	parseFn  func(context.Context, []byte) (*Document, error)
}

// Option configures an Extractor
type Option func(*Extractor)

// WithSections sets the page to section lookup used to tag fields
func WithSections(r SectionResolver) Option {
	return func(e *Extractor) { e.sections = r }
}

// WithLogger sets the logger for field-level warnings
func WithLogger(l *log.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithCache sets the parsed document cache. A nil cache disables caching.
func WithCache(c *DocumentCache) Option {
	return func(e *Extractor) { e.cache = c }
}

// NewExtractor creates an extractor with a default-sized cache
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		logger: log.Default(),
		cache:  NewDocumentCache(DefaultCacheSize),
	}
	e.parseFn = e.parse
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the extractor's document cache, which may be nil
func (e *Extractor) Cache() *DocumentCache {
	return e.cache
}

// ExtractPageFields returns the fields whose first widget is on page.
func (e *Extractor) ExtractPageFields(ctx context.Context, pdf []byte, page int) (ValidationReport, error) {
	doc, err := e.ExtractDocumentFields(ctx, pdf)
	if err != nil {
		return ValidationReport{}, err
	}
	if page < 1 || page > doc.PageCount {
		return ValidationReport{}, pdferrors.NewPDFError(pdferrors.ErrorTypePageOutOfRange,
			fmt.Sprintf("page %d is out of range (document has %d pages)", page, doc.PageCount)).WithPage(page)
	}

	var warnings []string
	if w := doc.Warnings[page]; len(w) > 0 {
		warnings = append(warnings, w...)
	}
	return NewValidationReport(page, doc.PageFields(page), warnings), nil
}

// ExtractDocumentFields parses the PDF, or returns the cached snapshot for
// identical bytes. Concurrent calls for the same bytes share one parse.
func (e *Extractor) ExtractDocumentFields(ctx context.Context, pdf []byte) (*Document, error) {
	if len(pdf) == 0 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeDocumentLoad, "PDF is empty")
	}

	key := DocumentKey(pdf)
	if e.cache != nil {
		if doc, ok := e.cache.Get(key); ok {
			return doc, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The shared parse outlives any one caller; each caller stops waiting
	// on its own context.
	parseCtx := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (interface{}, error) {
		doc, err := e.parseFn(parseCtx, pdf)
		if err != nil {
			return nil, err
		}
		if e.cache != nil {
			e.cache.Put(key, doc)
		}
		return doc, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Document), nil
	}
}

func (e *Extractor) parse(ctx context.Context, pdf []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pdferrors.NewPDFError(pdferrors.ErrorTypeDocumentLoad, fmt.Sprintf("PDF parser panicked: %v", r))
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadContext(bytes.NewReader(pdf), conf)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeDocumentLoad, "failed to read PDF", err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeDocumentLoad, "failed to read page tree", err)
	}

	w := &walker{
		ctx:      pctx,
		logger:   e.logger,
		sections: e.sections,
		pages:    make(map[int]int),
		annots:   make(map[int]int),
		visited:  make(map[int]bool),
		errs:     pdferrors.NewErrorCollection(),
		doc: &Document{
			PageCount: pctx.PageCount,
			Fields:    []ExtractedField{},
			Warnings:  make(map[int][]string),
		},
	}
	w.indexPages()

	fields, err := w.rootFields()
	if err != nil {
		return nil, err
	}
	for _, obj := range fields {
		if err := w.walk(ctx, obj, inherited{}, 0); err != nil {
			return nil, err
		}
	}

	if _, recovered := w.errs.Count(); recovered > 0 {
		w.logger.Printf("extraction: %d of %d fields unattributed or unreadable", recovered, len(w.doc.Fields)+w.doc.Unattributed)
	}
	return w.doc, nil
}

// inherited carries the attributes a field node passes to its kids
type inherited struct {
	name  string
	ft    string
	flags int
	hasFT bool
}

type walker struct {
	ctx      *model.Context
	logger   *log.Logger
	sections SectionResolver
	pages    map[int]int // page object number -> page number
	annots   map[int]int // annotation object number -> page number
	visited  map[int]bool
	errs     *pdferrors.ErrorCollection
	doc      *Document
}

// indexPages maps page objects and their annotations to page numbers so
// widgets can be attributed with or without a /P entry.
func (w *walker) indexPages() {
	for pageNr := 1; pageNr <= w.ctx.PageCount; pageNr++ {
		pageDict, ref, _, err := w.ctx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			w.logger.Printf("extraction: cannot read page %d: %v", pageNr, err)
			continue
		}
		if ref != nil {
			w.pages[int(ref.ObjectNumber)] = pageNr
		}

		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := w.ctx.DereferenceArray(annotsObj)
		if err != nil {
			continue
		}
		for _, a := range annots {
			if ir, ok := a.(types.IndirectRef); ok {
				if _, seen := w.annots[int(ir.ObjectNumber)]; !seen {
					w.annots[int(ir.ObjectNumber)] = pageNr
				}
			}
		}
	}
}

func (w *walker) rootFields() (types.Array, error) {
	catalog, err := w.ctx.Catalog()
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeDocumentLoad, "failed to read catalog", err)
	}

	acroFormObj, found := catalog.Find("AcroForm")
	if !found {
		w.logger.Printf("extraction: document has no AcroForm")
		return nil, nil
	}
	acroForm, err := w.ctx.DereferenceDict(acroFormObj)
	if err != nil || acroForm == nil {
		w.logger.Printf("extraction: cannot read AcroForm: %v", err)
		return nil, nil
	}

	fieldsObj, found := acroForm.Find("Fields")
	if !found {
		return nil, nil
	}
	fields, err := w.ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeDocumentLoad, "failed to read AcroForm fields", err)
	}
	return fields, nil
}

func (w *walker) walk(ctx context.Context, obj types.Object, parent inherited, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > maxFieldDepth {
		w.logger.Printf("extraction: field tree deeper than %d under %q, skipping", maxFieldDepth, parent.name)
		return nil
	}

	objNr := -1
	if ir, ok := obj.(types.IndirectRef); ok {
		objNr = int(ir.ObjectNumber)
		if w.visited[objNr] {
			return nil
		}
		w.visited[objNr] = true
	}

	dict, err := w.ctx.DereferenceDict(obj)
	if err != nil || dict == nil {
		w.logger.Printf("extraction: cannot read field object %d under %q: %v", objNr, parent.name, err)
		return nil
	}

	node := w.inherit(dict, parent)

	var childFields, widgets types.Array
	if kidsObj, found := dict.Find("Kids"); found {
		if kids, err := w.ctx.DereferenceArray(kidsObj); err == nil {
			for _, kid := range kids {
				kd, err := w.ctx.DereferenceDict(kid)
				if err != nil || kd == nil {
					continue
				}
				if _, named := kd.Find("T"); named {
					childFields = append(childFields, kid)
				} else {
					widgets = append(widgets, kid)
				}
			}
		}
	}

	if len(childFields) > 0 {
		for _, kid := range childFields {
			if err := w.walk(ctx, kid, node, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	w.terminal(dict, objNr, widgets, node)
	return nil
}

func (w *walker) inherit(dict types.Dict, parent inherited) inherited {
	node := parent
	if tObj, found := dict.Find("T"); found {
		if t, err := w.ctx.DereferenceStringOrHexLiteral(tObj, model.V10, nil); err == nil && t != "" {
			if node.name == "" {
				node.name = t
			} else {
				node.name = node.name + "." + t
			}
		}
	}
	if ftObj, found := dict.Find("FT"); found {
		if ft, err := w.ctx.DereferenceName(ftObj, model.V10, nil); err == nil {
			node.ft = string(ft)
			node.hasFT = true
		}
	}
	if ffObj, found := dict.Find("Ff"); found {
		if ff, err := w.ctx.DereferenceInteger(ffObj); err == nil && ff != nil {
			node.flags = int(*ff)
		}
	}
	return node
}

// terminal records one fillable field. Its first widget is the field
// dictionary itself when merged, else the first unnamed kid.
func (w *walker) terminal(dict types.Dict, objNr int, widgets types.Array, node inherited) {
	widget, widgetNr := dict, objNr
	if _, merged := dict.Find("Rect"); !merged && len(widgets) > 0 {
		wd, err := w.ctx.DereferenceDict(widgets[0])
		if err == nil && wd != nil {
			widget = wd
			widgetNr = -1
			if ir, ok := widgets[0].(types.IndirectRef); ok {
				widgetNr = int(ir.ObjectNumber)
			}
		}
	}

	page, ok := w.widgetPage(widget, widgetNr)
	if !ok {
		perr := pdferrors.NewPDFError(pdferrors.ErrorTypePageResolution, "widget page not found").WithField(node.name)
		w.errs.Add(perr)
		w.doc.Unattributed++
		return
	}

	fieldType := classify(node)
	field := ExtractedField{
		PDFFieldID: node.name,
		Page:       page,
		Label:      w.label(dict, node.name),
		FieldType:  fieldType,
		Rect:       w.rect(widget),
	}
	if w.sections != nil {
		if s, ok := w.sections.SectionForPage(page); ok {
			field.Section = &s
		}
	}

	value, err := w.readValue(dict, widget, fieldType)
	if err != nil {
		perr := pdferrors.WrapError(pdferrors.ErrorTypeFieldRead, "cannot read value", err).
			WithField(node.name).WithPage(page)
		w.errs.Add(perr)
		w.logger.Printf("extraction: warning: %v", perr)
		w.doc.Warnings[page] = append(w.doc.Warnings[page], perr.Error())
		value = nil
	}
	field.Value = value

	w.doc.Fields = append(w.doc.Fields, field)
}

func (w *walker) widgetPage(widget types.Dict, widgetNr int) (int, bool) {
	if pObj, found := widget.Find("P"); found {
		if ir, ok := pObj.(types.IndirectRef); ok {
			if page, ok := w.pages[int(ir.ObjectNumber)]; ok {
				return page, true
			}
		}
	}
	if widgetNr >= 0 {
		if page, ok := w.annots[widgetNr]; ok {
			return page, true
		}
	}
	return 0, false
}

// classify tags the field once; value decoding dispatches on the tag.
func classify(node inherited) mapping.FieldType {
	switch node.ft {
	case "Btn":
		switch {
		case node.flags&flagPushbutton != 0:
			return mapping.FieldTypeUnknown
		case node.flags&flagRadio != 0:
			return mapping.FieldTypeRadio
		default:
			return mapping.FieldTypeCheckbox
		}
	case "Tx":
		return mapping.FieldTypeText
	case "Ch":
		return mapping.FieldTypeDropdown
	default:
		return mapping.FieldTypeUnknown
	}
}

func (w *walker) readValue(field, widget types.Dict, fieldType mapping.FieldType) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	vObj, hasV := field.Find("V")

	switch fieldType {
	case mapping.FieldTypeText:
		if !hasV {
			return nil, nil
		}
		s, err := w.ctx.DereferenceStringOrHexLiteral(vObj, model.V10, nil)
		if err != nil {
			return nil, err
		}
		return s, nil

	case mapping.FieldTypeCheckbox:
		if hasV {
			return w.onState(vObj)
		}
		if asObj, found := widget.Find("AS"); found {
			return w.onState(asObj)
		}
		return false, nil

	case mapping.FieldTypeRadio:
		if !hasV {
			return nil, nil
		}
		name, err := w.ctx.DereferenceName(vObj, model.V10, nil)
		if err != nil {
			return nil, err
		}
		if name == "" || name == "Off" {
			return nil, nil
		}
		return string(name), nil

	case mapping.FieldTypeDropdown:
		if !hasV {
			return nil, nil
		}
		if s, err := w.ctx.DereferenceStringOrHexLiteral(vObj, model.V10, nil); err == nil {
			if s == "" {
				return nil, nil
			}
			return s, nil
		}
		arr, err := w.ctx.DereferenceArray(vObj)
		if err != nil {
			return nil, err
		}
		if len(arr) == 0 {
			return nil, nil
		}
		s, err := w.ctx.DereferenceStringOrHexLiteral(arr[0], model.V10, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	return nil, nil
}

func (w *walker) onState(obj types.Object) (bool, error) {
	name, err := w.ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return false, err
	}
	return name != "" && name != "Off", nil
}

func (w *walker) label(dict types.Dict, name string) string {
	if tuObj, found := dict.Find("TU"); found {
		if tu, err := w.ctx.DereferenceStringOrHexLiteral(tuObj, model.V10, nil); err == nil && tu != "" {
			return tu
		}
	}
	return name
}

func (w *walker) rect(widget types.Dict) *Rect {
	rectObj, found := widget.Find("Rect")
	if !found {
		return nil
	}
	arr, err := w.ctx.DereferenceArray(rectObj)
	if err != nil || len(arr) != 4 {
		return nil
	}

	var c [4]float64
	for i, o := range arr {
		f, err := w.ctx.DereferenceNumber(o)
		if err != nil {
			return nil
		}
		c[i] = f
	}
	return &Rect{
		X:      math.Min(c[0], c[2]),
		Y:      math.Min(c[1], c[3]),
		Width:  math.Abs(c[2] - c[0]),
		Height: math.Abs(c[3] - c[1]),
	}
}
