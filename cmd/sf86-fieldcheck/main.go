package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/sf86-validator/internal/coverage"
	"github.com/a3tai/sf86-validator/internal/formdata"
	"github.com/a3tai/sf86-validator/internal/mapping"
	"github.com/a3tai/sf86-validator/internal/pdf/extraction"
	"github.com/a3tai/sf86-validator/internal/pdf/formpdf"
	"github.com/a3tai/sf86-validator/internal/validation"
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return 0
	}

	var err error
	switch args[0] {
	case "extract":
		err = runExtract(args[1:], stdout, stderr)
	case "coverage":
		err = runCoverage(args[1:], stdout, stderr)
	case "audit":
		err = runAudit(args[1:], stdout, stderr)
	case "sample":
		err = runSample(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, pflag.ErrHelp):
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "sf86-fieldcheck - inspect SF-86 PDFs and their field mappings")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  sf86-fieldcheck extract  [--page N] [--mappings FILE] [--format text|json|yaml] <pdf_file>")
	fmt.Fprintln(w, "  sf86-fieldcheck coverage --page N --form-data FILE [--scope] [--mappings FILE] [--format ...] <pdf_file>")
	fmt.Fprintln(w, "  sf86-fieldcheck audit    --section N --inventory FILE [--mappings FILE] [--format ...]")
	fmt.Fprintln(w, "  sf86-fieldcheck sample   --section N [--mappings FILE] <out_file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  sf86-fieldcheck extract --page 17 exports/sf86-filled.pdf")
	fmt.Fprintln(w, "  sf86-fieldcheck coverage --page 17 --form-data data/applicant.json --scope exports/sf86-filled.pdf")
	fmt.Fprintln(w, "  sf86-fieldcheck audit --section 9 --inventory reference/section-9.json --format json")
}

type commonFlags struct {
	mappings string
	format   string
	verbose  bool
}

func newFlagSet(name string, stderr io.Writer, common *commonFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&common.mappings, "mappings", "", "Mapping table file (JSON or YAML); empty uses the embedded SF-86 table")
	fs.StringVarP(&common.format, "format", "f", "text", "Output format: text, json, yaml")
	fs.BoolVarP(&common.verbose, "verbose", "v", false, "Log extraction warnings to stderr")
	return fs
}

func (c commonFlags) extractor(table *mapping.Table, stderr io.Writer) *extraction.Extractor {
	out := io.Discard
	if c.verbose {
		out = stderr
	}
	return extraction.NewExtractor(
		extraction.WithSections(table),
		extraction.WithLogger(log.New(out, "[extract] ", 0)),
	)
}

// ExtractOutput is the extract command's result
type ExtractOutput struct {
	FilePath string                 `json:"file_path" yaml:"file_path"`
	Page     int                    `json:"page,omitempty" yaml:"page,omitempty"`
	Fields   []coverage.FieldStatus `json:"fields" yaml:"fields"`
	Mapped   int                    `json:"mapped" yaml:"mapped"`
	Unmapped int                    `json:"unmapped" yaml:"unmapped"`
	Warnings []string               `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func runExtract(args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	fs := newFlagSet("extract", stderr, &common)
	page := fs.Int("page", 0, "Page to extract; 0 extracts every page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, data, err := readPDFArg(fs, stderr)
	if err != nil {
		return err
	}
	table, err := mapping.Load(common.mappings)
	if err != nil {
		return err
	}

	extractor := common.extractor(table, stderr)
	ctx := context.Background()
	out := ExtractOutput{FilePath: path, Page: *page}

	var fields []extraction.ExtractedField
	if *page > 0 {
		report, err := extractor.ExtractPageFields(ctx, data, *page)
		if err != nil {
			return err
		}
		fields, out.Warnings = report.Fields, report.Warnings
	} else {
		doc, err := extractor.ExtractDocumentFields(ctx, data)
		if err != nil {
			return err
		}
		fields, out.Warnings = doc.Fields, flattenWarnings(doc.Warnings)
	}
	out.Fields = coverage.CompareFields(fields, table, nil)
	out.Mapped, out.Unmapped = coverage.Counts(out.Fields)

	return emit(stdout, common.format, out, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %d field(s), %d mapped, %d unmapped\n\n", out.FilePath, len(out.Fields), out.Mapped, out.Unmapped)
		for i, f := range out.Fields {
			fmt.Fprintf(w, "[%d] %s\n", i+1, f.PDFFieldID)
			fmt.Fprintf(w, "    Type: %s\n", f.FieldType)
			if f.Value != nil {
				fmt.Fprintf(w, "    Value: %v\n", f.Value)
			}
			if f.Mapped {
				fmt.Fprintf(w, "    Maps to: %s\n", f.UIPath)
			} else {
				fmt.Fprintln(w, "    Unmapped")
			}
		}
		printWarnings(w, out.Warnings)
	})
}

func runCoverage(args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	fs := newFlagSet("coverage", stderr, &common)
	page := fs.Int("page", 0, "Page to check (required)")
	formDataPath := fs.String("form-data", "", "Form data file, JSON or YAML (required)")
	scope := fs.Bool("scope", false, "Only expect form-data values mapped to the page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *page < 1 || *formDataPath == "" {
		fmt.Fprintln(stderr, "Error: --page and --form-data are required")
		return errUsage
	}
	_, data, err := readPDFArg(fs, stderr)
	if err != nil {
		return err
	}
	table, err := mapping.Load(common.mappings)
	if err != nil {
		return err
	}
	tree, err := formdata.LoadFile(*formDataPath)
	if err != nil {
		return err
	}

	session, err := validation.NewSession(table, common.extractor(table, stderr), data, tree, validation.Options{
		StartPage: *page, EndPage: *page, ScopeToPage: *scope,
	})
	if err != nil {
		return err
	}
	entry, err := session.ValidateSinglePage(context.Background(), *page)
	if err != nil {
		return err
	}

	return emit(stdout, common.format, entry, func(w io.Writer) {
		if entry.Coverage != nil {
			fmt.Fprintf(w, "Page %d: %s\n", entry.PageNumber, entry.Coverage.SummaryText)
			for _, v := range entry.Coverage.MissingValues {
				fmt.Fprintf(w, "  missing: %q\n", v)
			}
		} else {
			fmt.Fprintf(w, "Page %d: %s\n", entry.PageNumber, entry.ValidationStatus)
		}
		fmt.Fprintf(w, "Fields: %d, mapped %d, unmapped %d\n", entry.FieldCount, entry.MappedCount, entry.UnmappedCount)
		for _, e := range entry.Errors {
			fmt.Fprintf(w, "  error: %s\n", e)
		}
	})
}

func runAudit(args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	fs := newFlagSet("audit", stderr, &common)
	section := fs.Int("section", 0, "Section number, 1-30 (required)")
	inventoryPath := fs.String("inventory", "", "Reference field inventory JSON (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *section < 1 || *section > 30 || *inventoryPath == "" {
		fmt.Fprintln(stderr, "Error: --section (1-30) and --inventory are required")
		return errUsage
	}
	table, err := mapping.Load(common.mappings)
	if err != nil {
		return err
	}
	inv, err := mapping.LoadInventory(*inventoryPath)
	if err != nil {
		return err
	}

	report := table.Audit(*section, inv)
	return emit(stdout, common.format, report, func(w io.Writer) {
		fmt.Fprintf(w, "Section %d: %d/%d reference fields mapped (%.1f%%)\n",
			report.Section, report.Implemented, report.Total, report.Percent)
		for _, sub := range report.Subforms {
			fmt.Fprintf(w, "  %s: %d/%d (%.1f%%)\n", sub.Subform, sub.Implemented, sub.Total, sub.Percent)
		}
		for _, m := range report.Missing {
			fmt.Fprintf(w, "  missing: %s (page %d, %s)\n", m.Name, m.Page, m.Type)
		}
		for _, o := range report.Orphans {
			fmt.Fprintf(w, "  orphan: %s -> %s\n", o.UIPath, o.PDFFieldID)
		}
	})
}

// runSample writes a filled PDF for one section's main subform. Every
// mapped text field gets a value derived from its ui path, so the output
// round-trips through extract and coverage.
func runSample(args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	fs := newFlagSet("sample", stderr, &common)
	section := fs.Int("section", 0, "Section number, 1-30 (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *section < 1 || fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: --section and an output file are required")
		return errUsage
	}
	table, err := mapping.Load(common.mappings)
	if err != nil {
		return err
	}
	rng, ok := table.PageRange(*section)
	if !ok {
		return fmt.Errorf("section %d has no page range", *section)
	}

	subform, fields := sampleFields(table.Entries(*section))
	if len(fields) == 0 {
		return fmt.Errorf("section %d has no text fields to fill", *section)
	}
	out := fs.Arg(0)
	if err := os.WriteFile(out, formpdf.Build(rng.EndPage, subform, fields), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(stdout, "Wrote %s: %d field(s) under %s, pages 1-%d\n", filepath.Clean(out), len(fields), subform, rng.EndPage)
	return nil
}

func sampleFields(entries []mapping.Entry) (string, []formpdf.Field) {
	bySubform := make(map[string][]mapping.Entry)
	for _, e := range entries {
		if e.Legacy || e.FieldType != mapping.FieldTypeText {
			continue
		}
		parts := mapping.SplitFieldName(e.PDFFieldID)
		if len(parts) != 3 || parts[0] != formpdf.RootName {
			continue
		}
		bySubform[parts[1]] = append(bySubform[parts[1]], e)
	}

	names := make([]string, 0, len(bySubform))
	for name := range bySubform {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(bySubform[names[i]]) != len(bySubform[names[j]]) {
			return len(bySubform[names[i]]) > len(bySubform[names[j]])
		}
		return names[i] < names[j]
	})
	if len(names) == 0 {
		return "", nil
	}

	subform := names[0]
	fields := make([]formpdf.Field, 0, len(bySubform[subform]))
	for _, e := range bySubform[subform] {
		parts := mapping.SplitFieldName(e.PDFFieldID)
		fields = append(fields, formpdf.Field{
			Name:  parts[2],
			FT:    "Tx",
			V:     formpdf.Literal(sampleValue(e.UIPath)),
			Page:  e.Page,
			TU:    e.UIPath,
			Rect:  [4]float64{36, 36, 300, 52},
		})
	}
	return subform, fields
}

func sampleValue(uiPath string) string {
	segments := strings.Split(uiPath, ".")
	return "sample " + segments[len(segments)-1]
}

func readPDFArg(fs *pflag.FlagSet, stderr io.Writer) (string, []byte, error) {
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: PDF file path required")
		return "", nil, errUsage
	}
	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return "", nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return path, data, nil
}

func emit(w io.Writer, format string, v any, text func(io.Writer)) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(v)
	case "text":
		text(w)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func flattenWarnings(byPage map[int][]string) []string {
	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	var out []string
	for _, p := range pages {
		for _, w := range byPage[p] {
			out = append(out, fmt.Sprintf("page %d: %s", p, w))
		}
	}
	return out
}

func printWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w, "\nWarnings:")
	for _, warning := range warnings {
		fmt.Fprintf(w, "  %s\n", warning)
	}
}
