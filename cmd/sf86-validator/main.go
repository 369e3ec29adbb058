package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/sf86-validator/internal/config"
	"github.com/a3tai/sf86-validator/internal/httpapi"
	"github.com/a3tai/sf86-validator/internal/mapping"
	"github.com/a3tai/sf86-validator/internal/mcp"
	"github.com/a3tai/sf86-validator/internal/pdf"
	"github.com/a3tai/sf86-validator/internal/pdf/extraction"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
		return
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
}

// newService wires the mapping table, extractor and service from cfg
func newService(cfg *config.Config) (*pdf.Service, error) {
	table, err := mapping.Load(cfg.MappingsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping table: %w", err)
	}

	opts := []extraction.Option{
		extraction.WithSections(table),
		extraction.WithLogger(log.Default()),
	}
	if cfg.CacheSize > 0 {
		opts = append(opts, extraction.WithCache(extraction.NewDocumentCache(cfg.CacheSize)))
	} else {
		opts = append(opts, extraction.WithCache(nil))
	}

	return pdf.NewService(cfg.MaxFileSize, cfg.PDFDirectory, table, extraction.NewExtractor(opts...),
		pdf.WithPageRange(cfg.StartPage, cfg.EndPage),
		pdf.WithSessionIdleTimeout(cfg.SessionIdle))
}

// runServerMode serves the HTTP API until a shutdown signal arrives
func runServerMode(cfg *config.Config, service *pdf.Service) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	router := httpapi.NewRouter(service, cfg.IsDebug())
	if err := httpapi.Serve(ctx, cfg.Address(), router); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}

	log.Println("Server stopped successfully")
}

// runStdioMode serves MCP over stdin/stdout; the parent process owns our lifecycle
func runStdioMode(cfg *config.Config, service *pdf.Service) {
	server, err := mcp.NewServer(cfg, service)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	if err := server.Run(context.Background()); err != nil {
		if os.Getenv("DEBUG") != "" {
			log.Printf("Server error: %v", err)
		}
		os.Exit(1)
	}
}

func main() {
	for _, arg := range os.Args[1:] {
		if isVersionFlag(arg) {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	service, err := newService(cfg)
	if err != nil {
		log.Fatalf("Failed to create validation service: %v", err)
	}

	if cfg.IsServerMode() {
		runServerMode(cfg, service)
	} else {
		runStdioMode(cfg, service)
	}
}

func isVersionFlag(arg string) bool {
	return arg == "-version" || arg == "--version" || arg == "-v"
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("SF-86 Validator\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
