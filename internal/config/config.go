package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB
	DefaultMaxPages    = 100
	DefaultRateLimit   = 2.0 // collaborator calls per second

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the document indexer server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Indexing configuration
	DocumentsDirectory string
	IndexDirectory     string
	MaxFileSize        int64
	MaxPages           int
	WatchDocuments     bool

	// Collaborator configuration
	RateLimit        float64
	OCRMinConfidence float64

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:               ModeStdio, // Default to stdio mode for MCP compatibility
		Host:               DefaultHost,
		Port:               DefaultPort,
		DocumentsDirectory: currentDir,
		IndexDirectory:     filepath.Join(currentDir, ".docindex"),
		MaxFileSize:        DefaultMaxFileSize,
		MaxPages:           DefaultMaxPages,
		WatchDocuments:     false,
		RateLimit:          DefaultRateLimit,
		OCRMinConfidence:   0.5,
		Version:            "1.0.0",
		ServerName:         "mcp-doc-indexer",
		LogLevel:           DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	if showVersion, _ := pflag.CommandLine.GetBool("version"); showVersion {
		fmt.Printf("%s %s\n", cfg.ServerName, cfg.Version)
		return nil, errors.New("version requested")
	}

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.DocumentsDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.DocumentsDirectory); err == nil {
			cfg.DocumentsDirectory = expandedPath
		}
	}
	if cfg.IndexDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.IndexDirectory); err == nil {
			cfg.IndexDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("DOC_INDEXER")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("docs", cfg.DocumentsDirectory)
	viper.SetDefault("index", cfg.IndexDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("maxpages", cfg.MaxPages)
	viper.SetDefault("watch", cfg.WatchDocuments)
	viper.SetDefault("ratelimit", cfg.RateLimit)
	viper.SetDefault("ocrminconfidence", cfg.OCRMinConfidence)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("docs", cfg.DocumentsDirectory, "Directory containing personal documents to index")
	pflag.String("index", cfg.IndexDirectory, "Directory holding the manifest and index blobs")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum document file size in bytes")
	pflag.Int("maxpages", cfg.MaxPages, "Maximum page count before a document is rejected as too large")
	pflag.Bool("watch", cfg.WatchDocuments, "Watch the documents directory and flag changed files for reindex")
	pflag.Float64("ratelimit", cfg.RateLimit, "Maximum collaborator (OCR/LLM) calls per second")
	pflag.Float64("ocrminconfidence", cfg.OCRMinConfidence, "Minimum acceptable OCR confidence before trying a fallback provider")
	pflag.Bool("version", false, "Show version information and exit")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("host", pflag.Lookup("host"))
	_ = viper.BindPFlag("port", pflag.Lookup("port"))
	_ = viper.BindPFlag("docs", pflag.Lookup("docs"))
	_ = viper.BindPFlag("index", pflag.Lookup("index"))
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("maxfilesize", pflag.Lookup("maxfilesize"))
	_ = viper.BindPFlag("maxpages", pflag.Lookup("maxpages"))
	_ = viper.BindPFlag("watch", pflag.Lookup("watch"))
	_ = viper.BindPFlag("ratelimit", pflag.Lookup("ratelimit"))
	_ = viper.BindPFlag("ocrminconfidence", pflag.Lookup("ocrminconfidence"))
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP Doc Indexer - A Model Context Protocol server for indexing personal documents and matching form fields\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --docs=/path/to/documents         # stdio mode with custom documents directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --docs=/path/to/documents --watch # flag changed files automatically\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DOC_INDEXER_MODE         Server mode\n")
		fmt.Fprintf(os.Stderr, "  DOC_INDEXER_DOCS         Documents directory\n")
		fmt.Fprintf(os.Stderr, "  DOC_INDEXER_INDEX        Index directory\n")
		fmt.Fprintf(os.Stderr, "  DOC_INDEXER_LOGLEVEL     Log level\n")
		fmt.Fprintf(os.Stderr, "  DOC_INDEXER_MAXFILESIZE  Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  DOC_INDEXER_MAXPAGES     Maximum page count\n")
		fmt.Fprintf(os.Stderr, "  DOC_INDEXER_RATELIMIT    Collaborator calls per second\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.DocumentsDirectory = viper.GetString("docs")
	cfg.IndexDirectory = viper.GetString("index")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.MaxPages = viper.GetInt("maxpages")
	cfg.WatchDocuments = viper.GetBool("watch")
	cfg.RateLimit = viper.GetFloat64("ratelimit")
	cfg.OCRMinConfidence = viper.GetFloat64("ocrminconfidence")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate documents directory
	if c.DocumentsDirectory == "" {
		return errors.New("documents directory cannot be empty")
	}
	if _, err := os.Stat(c.DocumentsDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.DocumentsDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create documents directory %s: %w", c.DocumentsDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access documents directory %s: %w", c.DocumentsDirectory, err)
	}

	if c.IndexDirectory == "" {
		return errors.New("index directory cannot be empty")
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.MaxPages <= 0 {
		return errors.New("maximum page count must be positive")
	}

	if c.RateLimit < 0 {
		return errors.New("rate limit cannot be negative")
	}

	if c.OCRMinConfidence < 0 || c.OCRMinConfidence > 1 {
		return errors.New("OCR minimum confidence must be between 0 and 1")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
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
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, DocumentsDirectory: %s, IndexDirectory: %s, LogLevel: %s, MaxFileSize: %d, MaxPages: %d}",
		c.Mode, c.Host, c.Port, c.DocumentsDirectory, c.IndexDirectory, c.LogLevel, c.MaxFileSize, c.MaxPages)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
