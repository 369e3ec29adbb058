package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeStdio, cfg.Mode)
	assert.Equal(t, "sf86-validator", cfg.ServerName)
	assert.Equal(t, DefaultStartPage, cfg.StartPage)
	assert.Zero(t, cfg.EndPage)
	assert.Equal(t, DefaultSessionIdle, cfg.SessionIdle)
	assert.NotEmpty(t, cfg.PDFDirectory)
	assert.NoError(t, cfg.Validate())
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PDFDirectory = t.TempDir()
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "stdio ignores port", mutate: func(c *Config) { c.Port = 0 }},
		{name: "bad mode", mutate: func(c *Config) { c.Mode = "grpc" }, errorMsg: "mode must be either 'stdio' or 'server'"},
		{name: "server port", mutate: func(c *Config) { c.Mode = ModeServer; c.Port = 0 }, errorMsg: "port must be between 1 and 65535"},
		{name: "max file size", mutate: func(c *Config) { c.MaxFileSize = 0 }, errorMsg: "maximum file size must be positive"},
		{name: "cache size", mutate: func(c *Config) { c.CacheSize = -1 }, errorMsg: "cache size cannot be negative"},
		{name: "session idle", mutate: func(c *Config) { c.SessionIdle = -time.Second }, errorMsg: "session idle timeout cannot be negative"},
		{name: "start page zero", mutate: func(c *Config) { c.StartPage = 0 }, errorMsg: "start page must be between 1 and 136"},
		{name: "start page past form", mutate: func(c *Config) { c.StartPage = 137 }, errorMsg: "start page must be between 1 and 136"},
		{name: "end before start", mutate: func(c *Config) { c.StartPage = 17; c.EndPage = 16 }, errorMsg: "end page must be 0"},
		{name: "end page past form", mutate: func(c *Config) { c.EndPage = 200 }, errorMsg: "end page must be 0"},
		{name: "empty directory", mutate: func(c *Config) { c.PDFDirectory = "" }, errorMsg: "PDF directory cannot be empty"},
		{name: "log level", mutate: func(c *Config) { c.LogLevel = "verbose" }, errorMsg: "invalid log level: verbose"},
		{name: "mappings is a directory", mutate: func(c *Config) { c.MappingsFile = c.PDFDirectory }, errorMsg: "is a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestConfigValidate_ReportsEveryProblem(t *testing.T) {
	cfg := validConfig(t)
	cfg.Mode = "grpc"
	cfg.MaxFileSize = -1
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestConfigValidate_CreatesDirectory(t *testing.T) {
	cfg := validConfig(t)
	cfg.PDFDirectory = filepath.Join(cfg.PDFDirectory, "nested", "pdfs")

	require.NoError(t, cfg.Validate())
	info, err := os.Stat(cfg.PDFDirectory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigValidate_InvalidConfigCreatesNothing(t *testing.T) {
	cfg := validConfig(t)
	cfg.PDFDirectory = filepath.Join(cfg.PDFDirectory, "never")
	cfg.Mode = "grpc"

	require.Error(t, cfg.Validate())
	_, err := os.Stat(cfg.PDFDirectory)
	assert.True(t, os.IsNotExist(err))
}

func TestConfigPredicates(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.IsStdioMode())
	assert.False(t, cfg.IsServerMode())
	assert.False(t, cfg.IsDebug())
	assert.Equal(t, "127.0.0.1:8080", cfg.Address())

	cfg.Mode = ModeServer
	cfg.LogLevel = "debug"
	assert.True(t, cfg.IsServerMode())
	assert.True(t, cfg.IsDebug())
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		Mode:         ModeServer,
		Host:         "0.0.0.0",
		Port:         9000,
		PDFDirectory: "/srv/sf86",
		StartPage:    17,
		EndPage:      33,
		CacheSize:    4,
		LogLevel:     "warn",
		MaxFileSize:  1024,
	}
	assert.Equal(t,
		"Config{Mode: server, Host: 0.0.0.0, Port: 9000, PDFDirectory: /srv/sf86, MappingsFile: , "+
			"Pages: 17-33, CacheSize: 4, LogLevel: warn, MaxFileSize: 1024}",
		cfg.String())
}
