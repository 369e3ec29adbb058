package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultCacheSize   = 16
	DefaultStartPage   = 1
	DefaultSessionIdle = 30 * time.Minute

	// SF-86 page count; the end page of a session defaults to the document's own
	MaxFormPage = 136

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "SF86"
)

// Config holds all configuration for the SF-86 validator
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Input configuration
	PDFDirectory string
	MappingsFile string // empty uses the embedded table

	// Validation configuration
	StartPage int
	EndPage   int // 0 means the last page of the document
	CacheSize int // parsed documents kept by the extractor; 0 disables caching

	// SessionIdle evicts validation sessions unused for this long; 0 keeps them
	SessionIdle time.Duration

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:         ModeStdio, // Default to stdio mode for MCP compatibility
		Host:         DefaultHost,
		Port:         DefaultPort,
		PDFDirectory: currentDir,
		StartPage:    DefaultStartPage,
		CacheSize:    DefaultCacheSize,
		SessionIdle:  DefaultSessionIdle,
		Version:      "1.0.0",
		ServerName:   "sf86-validator",
		LogLevel:     DefaultLogLevel,
		MaxFileSize:  DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration.
// A .env file in the working directory, if present, is loaded first so its
// SF86_* variables act as defaults below real environment variables.
func LoadFromFlags() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("mappings", cfg.MappingsFile)
	viper.SetDefault("startpage", cfg.StartPage)
	viper.SetDefault("endpage", cfg.EndPage)
	viper.SetDefault("cachesize", cfg.CacheSize)
	viper.SetDefault("sessionidle", cfg.SessionIdle)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for the HTTP API")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing PDFs, form data and reference inventories")
	pflag.String("mappings", cfg.MappingsFile, "Field mapping table (JSON or YAML); empty uses the built-in table")
	pflag.Int("startpage", cfg.StartPage, "First page of a validation session")
	pflag.Int("endpage", cfg.EndPage, "Last page of a validation session (0 = last page of the PDF)")
	pflag.Int("cachesize", cfg.CacheSize, "Parsed PDFs kept in memory (0 disables the cache)")
	pflag.Duration("sessionidle", cfg.SessionIdle, "Drop validation sessions idle this long (0 keeps them)")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range []string{
		"mode", "host", "port", "dir", "mappings",
		"startpage", "endpage", "cachesize", "sessionidle", "loglevel", "maxfilesize",
	} {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSF-86 Validator - checks filled SF-86 PDFs against their form data\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # MCP over stdio, current directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/srv/sf86 --startpage=17    # sessions start at section 13\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --port=8081         # HTTP API\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables (also read from .env):\n")
		fmt.Fprintf(os.Stderr, "  SF86_MODE, SF86_HOST, SF86_PORT, SF86_DIR, SF86_MAPPINGS,\n")
		fmt.Fprintf(os.Stderr, "  SF86_STARTPAGE, SF86_ENDPAGE, SF86_CACHESIZE, SF86_SESSIONIDLE,\n")
		fmt.Fprintf(os.Stderr, "  SF86_LOGLEVEL, SF86_MAXFILESIZE\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.MappingsFile = viper.GetString("mappings")
	cfg.StartPage = viper.GetInt("startpage")
	cfg.EndPage = viper.GetInt("endpage")
	cfg.CacheSize = viper.GetInt("cachesize")
	cfg.SessionIdle = viper.GetDuration("sessionidle")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

func (c *Config) expandPaths() {
	if c.PDFDirectory != "" {
		if abs, err := filepath.Abs(c.PDFDirectory); err == nil {
			c.PDFDirectory = abs
		}
	}
	if c.MappingsFile != "" {
		if abs, err := filepath.Abs(c.MappingsFile); err == nil {
			c.MappingsFile = abs
		}
	}
}

// Validate checks the configuration and reports every problem found, not
// just the first. The PDF directory is created if missing.
func (c *Config) Validate() error {
	var errs error

	if c.Mode != ModeStdio && c.Mode != ModeServer {
		errs = multierr.Append(errs, errors.New("mode must be either 'stdio' or 'server'"))
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		errs = multierr.Append(errs, errors.New("port must be between 1 and 65535"))
	}

	if c.MaxFileSize <= 0 {
		errs = multierr.Append(errs, errors.New("maximum file size must be positive"))
	}

	if c.CacheSize < 0 {
		errs = multierr.Append(errs, errors.New("cache size cannot be negative"))
	}

	if c.SessionIdle < 0 {
		errs = multierr.Append(errs, errors.New("session idle timeout cannot be negative"))
	}

	if c.StartPage < 1 || c.StartPage > MaxFormPage {
		errs = multierr.Append(errs, fmt.Errorf("start page must be between 1 and %d", MaxFormPage))
	}
	if c.EndPage != 0 && (c.EndPage < c.StartPage || c.EndPage > MaxFormPage) {
		errs = multierr.Append(errs, fmt.Errorf("end page must be 0 or between the start page and %d", MaxFormPage))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errs = multierr.Append(errs,
			fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel))
	}

	if c.MappingsFile != "" {
		if info, err := os.Stat(c.MappingsFile); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cannot access mappings file %s: %w", c.MappingsFile, err))
		} else if info.IsDir() {
			errs = multierr.Append(errs, fmt.Errorf("mappings file %s is a directory", c.MappingsFile))
		}
	}

	if c.PDFDirectory == "" {
		errs = multierr.Append(errs, errors.New("PDF directory cannot be empty"))
	} else if errs == nil {
		if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
			if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err))
			}
		} else if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err))
		}
	}

	return errs
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, MappingsFile: %s, "+
		"Pages: %d-%d, CacheSize: %d, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.MappingsFile,
		c.StartPage, c.EndPage, c.CacheSize, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the HTTP API should be served
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the MCP server runs over stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
