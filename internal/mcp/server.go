package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/sf86-validator/internal/config"
	"github.com/a3tai/sf86-validator/internal/coverage"
	"github.com/a3tai/sf86-validator/internal/descriptions"
	"github.com/a3tai/sf86-validator/internal/mapping"
	"github.com/a3tai/sf86-validator/internal/pdf"
	"github.com/a3tai/sf86-validator/internal/validation"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *pdf.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *pdf.Service) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s, nil
}

func pathParam(desc string) mcp.ToolOption {
	return mcp.WithString("path", mcp.Required(), mcp.Description(desc))
}

func formDataParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("form_data_path",
			mcp.Description("Form-data file (JSON or YAML), relative to the configured directory"),
		),
		mcp.WithString("form_data",
			mcp.Description("Inline form data as a JSON or YAML document; takes precedence over form_data_path"),
		),
	}
}

func sessionParam() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID returned by sf86_session_start"))
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"sf86_validate_file",
		mcp.WithDescription(descriptions.ValidateFileDescription),
		pathParam("Path to the PDF file"),
	), s.handleValidateFile)

	s.mcpServer.AddTool(mcp.NewTool(
		"sf86_map_field",
		mcp.WithDescription(descriptions.MapFieldDescription),
		mcp.WithString("ui_path", mcp.Description("Form-data path, e.g. section13.federalEmployment.entries[0].supervisorName")),
		mcp.WithString("pdf_field_id", mcp.Description("Fully qualified AcroForm field name")),
	), s.handleMapField)

	s.mcpServer.AddTool(mcp.NewTool(
		"sf86_page_mappings",
		mcp.WithDescription(descriptions.PageMappingsDescription),
		mcp.WithNumber("page", mcp.Required(), mcp.Min(1), mcp.Description("1-based PDF page number")),
	), s.handlePageMappings)

	s.mcpServer.AddTool(mcp.NewTool(
		"sf86_extract_page",
		mcp.WithDescription(descriptions.ExtractPageDescription),
		pathParam("Path to the filled PDF"),
		mcp.WithNumber("page", mcp.Required(), mcp.Min(1), mcp.Description("1-based PDF page number")),
	), s.handleExtractPage)

	coverageOpts := []mcp.ToolOption{
		mcp.WithDescription(descriptions.CheckCoverageDescription),
		pathParam("Path to the filled PDF"),
		mcp.WithNumber("page", mcp.Required(), mcp.Min(1), mcp.Description("1-based PDF page number")),
		mcp.WithBoolean("scope_to_page", mcp.Description("Only expect the values mapped to this page")),
	}
	s.mcpServer.AddTool(mcp.NewTool("sf86_check_coverage",
		append(coverageOpts, formDataParams()...)...), s.handleCheckCoverage)

	s.mcpServer.AddTool(mcp.NewTool(
		"sf86_audit_section",
		mcp.WithDescription(descriptions.AuditSectionDescription),
		mcp.WithNumber("section", mcp.Required(), mcp.Min(1), mcp.Max(30), mcp.Description("SF-86 section number")),
		mcp.WithString("inventory_path", mcp.Required(), mcp.Description("Reference field inventory (JSON or YAML)")),
	), s.handleAuditSection)

	startOpts := []mcp.ToolOption{
		mcp.WithDescription(descriptions.SessionStartDescription),
		pathParam("Path to the filled PDF"),
		mcp.WithNumber("start_page", mcp.Description("First page (defaults to the configured start page)")),
		mcp.WithNumber("end_page", mcp.Description("Last page (defaults to the configured end page or the last page)")),
		mcp.WithBoolean("scope_to_page", mcp.Description("Only expect the values mapped to the page being validated")),
	}
	s.mcpServer.AddTool(mcp.NewTool("sf86_session_start",
		append(startOpts, formDataParams()...)...), s.handleSessionStart)

	s.mcpServer.AddTool(mcp.NewTool(
		"sf86_session_validate",
		mcp.WithDescription(descriptions.SessionValidateDescription),
		sessionParam(),
		mcp.WithNumber("page", mcp.Description("Page to validate (defaults to the current page)")),
	), s.handleSessionValidate)

	s.mcpServer.AddTool(mcp.NewTool(
		"sf86_session_advance",
		mcp.WithDescription(descriptions.SessionAdvanceDescription),
		sessionParam(),
	), s.handleSessionAdvance)

	s.mcpServer.AddTool(mcp.NewTool(
		"sf86_session_retreat",
		mcp.WithDescription(descriptions.SessionRetreatDescription),
		sessionParam(),
	), s.handleSessionRetreat)

	s.mcpServer.AddTool(mcp.NewTool(
		"sf86_session_manifest",
		mcp.WithDescription(descriptions.SessionManifestDescription),
		sessionParam(),
	), s.handleSessionManifest)

	reloadOpts := []mcp.ToolOption{
		mcp.WithDescription(descriptions.SessionReloadDescription),
		sessionParam(),
		pathParam("Path to the regenerated PDF"),
	}
	s.mcpServer.AddTool(mcp.NewTool("sf86_session_reload",
		append(reloadOpts, formDataParams()...)...), s.handleSessionReload)
}

// Handler functions

func (s *Server) handleValidateFile(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.ValidateFile(pdf.ValidateFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !result.Valid {
		return mcp.NewToolResultText(fmt.Sprintf("PDF validation failed for %s: %s", result.Path, result.Message)), nil
	}
	text := fmt.Sprintf("PDF file %s is valid and readable\n", result.Path)
	text += fmt.Sprintf("Pages: %d\n", result.Pages)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("AcroForm: %t (%d top-level fields)\n", result.HasAcroForm, result.FormFields)
	if result.Message != "" {
		text += "\n⚠️  " + result.Message + "\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleMapField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := pdf.MapFieldRequest{
		UIPath:     request.GetString("ui_path", ""),
		PDFFieldID: request.GetString("pdf_field_id", ""),
	}
	result, err := s.service.MapField(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !result.Found {
		return mcp.NewToolResultText(fmt.Sprintf("No mapping found for %s (%s)", result.Query, result.Direction)), nil
	}
	text := fmt.Sprintf("Mapping found (%s)\n", result.Direction)
	text += formatEntry(*result.Entry)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePageMappings(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page := request.GetInt("page", 0)
	result, err := s.service.PageMappings(pdf.PageMappingsRequest{Page: page})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Page %d: %d mapped field(s)", result.Page, len(result.Entries))
	if result.Section != 0 {
		text += fmt.Sprintf(", section %d", result.Section)
	}
	text += "\n"
	for i, e := range result.Entries {
		text += fmt.Sprintf("\n%d. ", i+1) + formatEntry(e)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleExtractPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := pdf.ExtractPageRequest{Path: path, Page: request.GetInt("page", 0)}

	result, err := s.service.ExtractPage(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r := result.Report
	text := fmt.Sprintf("Page %d of %s\n", r.PageNumber, result.Path)
	text += fmt.Sprintf("Fields: %d (%d with values, %d empty)\n", r.TotalFields, r.FieldsWithValues, r.FieldsEmpty)
	text += fmt.Sprintf("Mapped: %d, unmapped: %d\n", result.Mapped, result.Unmapped)
	text += formatWarnings(r.Warnings)
	text += "\nFields:\n" + formatStatuses(result.Fields)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleCheckCoverage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := formDataArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := pdf.CoverageRequest{
		FormDataSource: src,
		Path:           path,
		Page:           request.GetInt("page", 0),
		ScopeToPage:    request.GetBool("scope_to_page", false),
	}

	resp, err := s.service.CheckCoverage(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Coverage for page %d of %s\n", resp.Page, resp.Path)
	if len(resp.Errors) > 0 {
		text += "❌ Page could not be read:\n"
		for _, e := range resp.Errors {
			text += "  • " + e + "\n"
		}
		return mcp.NewToolResultText(text), nil
	}
	text += formatCoverage(resp.Coverage)
	text += fmt.Sprintf("Mapped fields: %d, unmapped: %d\n", resp.MappedCount, resp.UnmappedCount)
	text += formatWarnings(resp.Warnings)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleAuditSection(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	inventory, err := request.RequireString("inventory_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := pdf.AuditRequest{Section: request.GetInt("section", 0), InventoryPath: inventory}

	report, err := s.service.AuditSection(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatAudit(report)), nil
}

func (s *Server) handleSessionStart(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := formDataArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := pdf.SessionStartRequest{
		FormDataSource: src,
		Path:           path,
		StartPage:      request.GetInt("start_page", 0),
		EndPage:        request.GetInt("end_page", 0),
		ScopeToPage:    request.GetBool("scope_to_page", false),
	}

	state, err := s.service.StartSession(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := fmt.Sprintf("Session started: %s\n", state.Summary.SessionID)
	text += fmt.Sprintf("Pages %d-%d, current page %d\n", state.Summary.StartPage, state.Summary.EndPage, state.Summary.CurrentPage)
	text += "\nNext: call sf86_session_validate with this session_id.\n"
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSessionValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.service.ValidateSessionPage(ctx, pdf.SessionPageRequest{
		SessionID: id,
		Page:      request.GetInt("page", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(sessionError(err)), nil
	}

	text := formatManifestEntry(*state.Entry)
	if state.Entry.Passed() {
		text += "\n✅ Page complete. Call sf86_session_advance to move on.\n"
	} else {
		text += "\nPage " + validation.MsgCoverageRequired + " before advancing.\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSessionAdvance(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleNavigation(request, s.service.AdvanceSession)
}

func (s *Server) handleSessionRetreat(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleNavigation(request, s.service.RetreatSession)
}

func (s *Server) handleNavigation(request mcp.CallToolRequest,
	move func(id string) (*pdf.SessionState, error),
) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := move(id)
	if err != nil {
		return mcp.NewToolResultError(sessionError(err)), nil
	}

	nav := state.Navigation
	if nav.Moved {
		return mcp.NewToolResultText(fmt.Sprintf("Now on page %d", nav.Page)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Still on page %d: %s", nav.Page, nav.Message)), nil
}

func (s *Server) handleSessionManifest(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.service.SessionManifest(id)
	if err != nil {
		return mcp.NewToolResultError(sessionError(err)), nil
	}
	return mcp.NewToolResultText(formatManifest(state)), nil
}

func (s *Server) handleSessionReload(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := formDataArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	state, err := s.service.ReloadSession(pdf.SessionReloadRequest{FormDataSource: src, SessionID: id, Path: path})
	if err != nil {
		return mcp.NewToolResultError(sessionError(err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Session %s now reads %s. Revalidate page %d to refresh its result.",
		id, path, state.Summary.CurrentPage)), nil
}

// formDataArgs reads form_data or form_data_path. Inline data is parsed as
// JSON, then as YAML.
func formDataArgs(request mcp.CallToolRequest) (pdf.FormDataSource, error) {
	src := pdf.FormDataSource{FormDataPath: request.GetString("form_data_path", "")}
	inline := strings.TrimSpace(request.GetString("form_data", ""))
	if inline == "" {
		return src, nil
	}

	var tree map[string]any
	if jsonErr := json.Unmarshal([]byte(inline), &tree); jsonErr != nil {
		if err := yaml.Unmarshal([]byte(inline), &tree); err != nil {
			return src, fmt.Errorf("form_data is neither JSON nor YAML: %w", jsonErr)
		}
	}
	if tree == nil {
		tree = map[string]any{}
	}
	src.FormData = tree
	return src, nil
}

func sessionError(err error) string {
	if errors.Is(err, validation.ErrSessionNotFound) {
		return "unknown session_id; start one with sf86_session_start"
	}
	return err.Error()
}

// Formatting helpers

func formatEntry(e mapping.Entry) string {
	text := fmt.Sprintf("%s\n", e.UIPath)
	text += fmt.Sprintf("   PDF field: %s\n", e.PDFFieldID)
	text += fmt.Sprintf("   Page: %d, section: %d, type: %s\n", e.Page, e.Section, e.FieldType)
	if e.Legacy {
		text += "   Legacy mapping"
		if e.Note != "" {
			text += ": " + e.Note
		}
		text += "\n"
	}
	return text
}

func formatStatuses(statuses []coverage.FieldStatus) string {
	if len(statuses) == 0 {
		return "  (no fields on this page)\n"
	}
	var sb strings.Builder
	for i, f := range statuses {
		value := "<empty>"
		if f.HasValue {
			value = fmt.Sprintf("%v", f.Value)
		}
		fmt.Fprintf(&sb, "%d. %s [%s] = %s\n", i+1, f.PDFFieldID, f.FieldType, value)
		if f.Mapped {
			fmt.Fprintf(&sb, "   → %s\n", f.UIPath)
		} else {
			sb.WriteString("   → unmapped\n")
		}
	}
	return sb.String()
}

func formatWarnings(warnings []string) string {
	if len(warnings) == 0 {
		return ""
	}
	text := fmt.Sprintf("\n⚠️  %d warning(s):\n", len(warnings))
	for _, w := range warnings {
		text += "  • " + w + "\n"
	}
	return text
}

func formatCoverage(c coverage.Result) string {
	text := c.SummaryText + "\n"
	if len(c.MissingValues) > 0 {
		text += "Missing values:\n"
		for _, v := range c.MissingValues {
			text += fmt.Sprintf("  • %q\n", v)
		}
	}
	return text
}

func formatManifestEntry(e validation.PageManifestEntry) string {
	text := fmt.Sprintf("Page %d: %s, %.1f%% coverage\n", e.PageNumber, e.ValidationStatus, e.CoveragePercent)
	text += fmt.Sprintf("Fields: %d (mapped %d, unmapped %d)\n", e.FieldCount, e.MappedCount, e.UnmappedCount)
	if e.Coverage != nil {
		text += formatCoverage(*e.Coverage)
	}
	for _, err := range e.Errors {
		text += "❌ " + err + "\n"
	}
	if e.Report != nil {
		text += formatWarnings(e.Report.Warnings)
	}
	return text
}

func formatManifest(state *pdf.SessionState) string {
	sum := state.Summary
	text := fmt.Sprintf("Session %s: pages %d-%d, current page %d\n", sum.SessionID, sum.StartPage, sum.EndPage, sum.CurrentPage)
	text += fmt.Sprintf("Checked %d/%d, passed %d, with errors %d, overall coverage %.1f%%\n\n",
		sum.PagesChecked, sum.TotalPages, sum.PagesPassed, sum.PagesWithErrors, sum.OverallCoverage)
	for _, e := range state.Manifest {
		mark := "·"
		switch {
		case e.Passed():
			mark = "✓"
		case e.ValidationStatus == validation.StatusComplete:
			mark = "✗"
		}
		text += fmt.Sprintf("%s page %d: %s", mark, e.PageNumber, e.ValidationStatus)
		if e.ValidationStatus == validation.StatusComplete {
			text += fmt.Sprintf(", %.1f%%, %d field(s)", e.CoveragePercent, e.FieldCount)
		}
		text += "\n"
	}
	return text
}

func formatAudit(r *mapping.AuditReport) string {
	text := fmt.Sprintf("Section %d audit: %d/%d reference fields mapped (%.1f%%)\n", r.Section, r.Implemented, r.Total, r.Percent)
	if len(r.Subforms) > 0 {
		text += "\nBy subform:\n"
		for _, sub := range r.Subforms {
			text += fmt.Sprintf("  %s: %d/%d (%.1f%%)\n", sub.Subform, sub.Implemented, sub.Total, sub.Percent)
		}
	}
	if len(r.Missing) > 0 {
		text += fmt.Sprintf("\nMissing (%d):\n", len(r.Missing))
		for _, m := range r.Missing {
			text += fmt.Sprintf("  • %s [%s] page %d", m.Name, m.Type, m.Page)
			if m.Label != "" {
				text += " - " + m.Label
			}
			text += "\n"
		}
	}
	if len(r.Orphans) > 0 {
		text += fmt.Sprintf("\nMappings with no reference field (%d):\n", len(r.Orphans))
		for _, o := range r.Orphans {
			text += fmt.Sprintf("  • %s → %s\n", o.UIPath, o.PDFFieldID)
		}
	}
	return text
}

// Run serves MCP over stdio until the client disconnects
func (s *Server) Run(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting SF-86 MCP server in stdio mode")
		log.Printf("PDF directory: %s", s.config.PDFDirectory)
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
