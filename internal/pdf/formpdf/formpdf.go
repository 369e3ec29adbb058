// Package formpdf writes small AcroForm PDFs with exact xref offsets. It
// backs the extractor, validator and transport tests and the fieldcheck
// sample command.
package formpdf

import (
	"fmt"
	"strings"
)

// RootName is the /T of the top-level field node, as in the SF-86
const RootName = "form1[0]"

// Field describes one terminal field and its single widget
type Field struct {
	Name  string // partial name under the subform
	FT    string // Tx, Btn, Ch or Sig
	Flags int
	V     string // raw PDF object syntax for /V, empty for none
	AS    string // widget appearance state name, without the slash
	TU    string // tooltip
	Page  int    // 1-based; 0 leaves the widget unattached
	Rect  [4]float64
	// OmitP drops the widget's /P entry; the widget is still listed in the
	// page's /Annots.
	OmitP bool
	// Merged writes the widget into the field dictionary instead of a kid.
	Merged bool
}

// Literal encodes s as a PDF literal string
func Literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}

// Name encodes n as a PDF name
func Name(n string) string {
	return "/" + n
}

// Array encodes literal strings as a PDF array
func Array(items ...string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = Literal(it)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// FullName returns the fully qualified name a field gets in Build
func FullName(subform, name string) string {
	if subform == "" {
		return RootName + "." + name
	}
	return RootName + "." + subform + "." + name
}

type builder struct {
	objs []string
}

func (b *builder) reserve() int {
	b.objs = append(b.objs, "")
	return len(b.objs)
}

func (b *builder) set(n int, body string) {
	b.objs[n-1] = body
}

func (b *builder) add(body string) int {
	n := b.reserve()
	b.set(n, body)
	return n
}

func (b *builder) bytes(root int) []byte {
	var sb strings.Builder
	sb.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(b.objs))
	for i, body := range b.objs {
		offsets[i] = sb.Len()
		fmt.Fprintf(&sb, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefStart := sb.Len()
	fmt.Fprintf(&sb, "xref\n0 %d\n0000000000 65535 f \n", len(b.objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&sb, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&sb, "trailer\n<<\n/Size %d\n/Root %d 0 R\n>>\nstartxref\n%d\n%%%%EOF", len(b.objs)+1, root, xrefStart)
	return []byte(sb.String())
}

// Minimal returns a PDF with pageCount blank pages and no AcroForm
func Minimal(pageCount int) []byte {
	return Build(pageCount, "", nil)
}

// Build returns a PDF with pageCount pages whose AcroForm holds the given
// fields under form1[0].subform. A nil field list omits the AcroForm.
func Build(pageCount int, subform string, fields []Field) []byte {
	b := &builder{}
	catalog := b.reserve()
	pages := b.reserve()

	pageObjs := make([]int, pageCount)
	for i := range pageObjs {
		pageObjs[i] = b.reserve()
	}
	annots := make([][]string, pageCount)

	var acroForm, root, sub int
	parent := 0
	if fields != nil {
		acroForm = b.reserve()
		root = b.reserve()
		parent = root
		if subform != "" {
			sub = b.reserve()
			parent = sub
		}
	}

	kids := make([]string, 0, len(fields))
	for _, f := range fields {
		fieldNr := b.reserve()
		kids = append(kids, ref(fieldNr))

		var fieldBody, widgetBody strings.Builder
		fmt.Fprintf(&fieldBody, "/T %s /FT /%s /Parent %s", Literal(f.Name), f.FT, ref(parent))
		if f.Flags != 0 {
			fmt.Fprintf(&fieldBody, " /Ff %d", f.Flags)
		}
		if f.V != "" {
			fmt.Fprintf(&fieldBody, " /V %s", f.V)
		}
		if f.TU != "" {
			fmt.Fprintf(&fieldBody, " /TU %s", Literal(f.TU))
		}

		fmt.Fprintf(&widgetBody, "/Type /Annot /Subtype /Widget /Rect [%g %g %g %g]", f.Rect[0], f.Rect[1], f.Rect[2], f.Rect[3])
		if f.AS != "" {
			fmt.Fprintf(&widgetBody, " /AS /%s", f.AS)
		}
		onPage := f.Page >= 1 && f.Page <= pageCount
		if onPage && !f.OmitP {
			fmt.Fprintf(&widgetBody, " /P %s", ref(pageObjs[f.Page-1]))
		}

		widgetNr := fieldNr
		if f.Merged {
			b.set(fieldNr, "<< "+fieldBody.String()+" "+widgetBody.String()+" >>")
		} else {
			widgetNr = b.add("<< " + widgetBody.String() + " /Parent " + ref(fieldNr) + " >>")
			b.set(fieldNr, "<< "+fieldBody.String()+" /Kids ["+ref(widgetNr)+"] >>")
		}
		if onPage {
			annots[f.Page-1] = append(annots[f.Page-1], ref(widgetNr))
		}
	}

	catalogBody := fmt.Sprintf("<< /Type /Catalog /Pages %s", ref(pages))
	if fields != nil {
		catalogBody += fmt.Sprintf(" /AcroForm %s", ref(acroForm))
		b.set(acroForm, fmt.Sprintf("<< /Fields [%s] >>", ref(root)))
		if subform != "" {
			b.set(root, fmt.Sprintf("<< /T %s /Kids [%s] >>", Literal(RootName), ref(sub)))
			b.set(sub, fmt.Sprintf("<< /T %s /Parent %s /Kids [%s] >>", Literal(subform), ref(root), strings.Join(kids, " ")))
		} else {
			b.set(root, fmt.Sprintf("<< /T %s /Kids [%s] >>", Literal(RootName), strings.Join(kids, " ")))
		}
	}
	b.set(catalog, catalogBody+" >>")

	pageRefs := make([]string, pageCount)
	for i, nr := range pageObjs {
		pageRefs[i] = ref(nr)
		body := fmt.Sprintf("<< /Type /Page /Parent %s /MediaBox [0 0 612 792] /Resources << >>", ref(pages))
		if len(annots[i]) > 0 {
			body += " /Annots [" + strings.Join(annots[i], " ") + "]"
		}
		b.set(nr, body+" >>")
	}
	b.set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(pageRefs, " "), pageCount))

	return b.bytes(catalog)
}

func ref(n int) string {
	return fmt.Sprintf("%d 0 R", n)
}
