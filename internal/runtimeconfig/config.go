package runtimeconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

var ErrContentDirRequired = errors.New("blog config: posts content directory is required")
var ErrGeneratorOutputDirRequired = errors.New("blog config: generator output directory is required")
var ErrManifestDriverUnknown = errors.New("blog config: manifest driver is invalid")
var ErrManifestDSNRequired = errors.New("blog config: manifest dsn is required for database drivers")
var ErrManifestCacheRequiresDatabase = errors.New("blog config: manifest cache requires a database driver")
var ErrLoggingProviderRequired = errors.New("blog config: logging provider is required")
var ErrLoggingProviderUnknown = errors.New("blog config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("blog config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("blog config: logging format is invalid")

// Config aggregates every setting of the blog toolkit. The yaml tags match
// the keys accepted by Load.
type Config struct {
	Posts     PostsConfig          `yaml:"posts"`
	Markdown  MarkdownParserConfig `yaml:"markdown"`
	Generator GeneratorConfig      `yaml:"generator"`
	Manifest  ManifestConfig       `yaml:"manifest"`
	Commands  CommandsConfig       `yaml:"commands"`
	Logging   LoggingConfig        `yaml:"logging"`
}

// PostsConfig controls where posts come from and how sources are split.
type PostsConfig struct {
	ContentDir string `yaml:"content_dir"`
	Pattern    string `yaml:"pattern"`
	Recursive  bool   `yaml:"recursive"`
	// Delimiter separates posts sharing a source file.
	Delimiter string `yaml:"delimiter"`
	// FrontMatterSchema is an optional JSON or YAML schema file.
	FrontMatterSchema string `yaml:"frontmatter_schema"`
}

// MarkdownParserConfig mirrors interfaces.ParseOptions for runtime configuration.
type MarkdownParserConfig struct {
	Extensions []string `yaml:"extensions"`
	Sanitize   bool     `yaml:"sanitize"`
	HardWraps  bool     `yaml:"hard_wraps"`
	SafeMode   bool     `yaml:"safe_mode"`
}

// GeneratorConfig captures behaviour for the static site generator.
type GeneratorConfig struct {
	OutputDir   string `yaml:"output_dir"`
	BaseURL     string `yaml:"base_url"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	Language    string `yaml:"language"`
	// ThemeDir overrides the embedded templates with files of the same name.
	ThemeDir        string        `yaml:"theme_dir"`
	// ThemeVariant selects a variant declared by the theme's go-theme manifest.
	ThemeVariant    string        `yaml:"theme_variant"`
	Incremental     bool          `yaml:"incremental"`
	IncludeDrafts   bool          `yaml:"include_drafts"`
	GenerateSitemap bool          `yaml:"generate_sitemap"`
	GenerateRobots  bool          `yaml:"generate_robots"`
	GenerateFeeds   bool          `yaml:"generate_feeds"`
	FeedLimit       int           `yaml:"feed_limit"`
	Workers         int           `yaml:"workers"`
	RenderTimeout   time.Duration `yaml:"render_timeout"`
}

// ManifestConfig selects where incremental build state is kept.
type ManifestConfig struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver   string        `yaml:"driver"`
	DSN      string        `yaml:"dsn"`
	Cache    bool          `yaml:"cache"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// CommandsConfig captures command-layer behaviour.
type CommandsConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string   `yaml:"provider"`
	Level     string   `yaml:"level"`
	Format    string   `yaml:"format"`
	AddSource bool     `yaml:"add_source"`
	Focus     []string `yaml:"focus"`
}

// DefaultConfig returns defaults suited to a local blog checkout.
func DefaultConfig() Config {
	return Config{
		Posts: PostsConfig{
			ContentDir: "content",
			Pattern:    "*.md",
			Recursive:  true,
			Delimiter:  "<!-- post -->",
		},
		Markdown: MarkdownParserConfig{
			Extensions: []string{"gfm", "linkify", "tasklist"},
		},
		Generator: GeneratorConfig{
			OutputDir:       "dist",
			BaseURL:         "http://localhost:8080",
			Title:           "Blog",
			Language:        "en",
			GenerateSitemap: true,
			GenerateRobots:  true,
			GenerateFeeds:   true,
			FeedLimit:       20,
			Workers:         4,
		},
		Manifest: ManifestConfig{
			Driver:   "memory",
			CacheTTL: time.Minute,
		},
		Commands: CommandsConfig{
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
	}
}

// Load reads a YAML file over DefaultConfig and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("blog config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("blog config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.Posts.ContentDir) == "" {
		return ErrContentDirRequired
	}
	if strings.TrimSpace(cfg.Generator.OutputDir) == "" {
		return ErrGeneratorOutputDirRequired
	}

	driver := normalize(cfg.Manifest.Driver)
	switch driver {
	case "", "memory":
		if cfg.Manifest.Cache {
			return ErrManifestCacheRequiresDatabase
		}
	case "sqlite", "sqlite3", "postgres", "postgresql", "pg":
		if strings.TrimSpace(cfg.Manifest.DSN) == "" {
			return fmt.Errorf("%w: %s", ErrManifestDSNRequired, driver)
		}
	default:
		return fmt.Errorf("%w: %s", ErrManifestDriverUnknown, driver)
	}

	provider := normalize(cfg.Logging.Provider)
	if provider == "" {
		return ErrLoggingProviderRequired
	}
	if !isSupportedProvider(provider) {
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
	}
	if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if provider == "gologger" {
		if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
			return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
		}
	}

	return validation.ValidateStruct(&cfg.Generator,
		validation.Field(&cfg.Generator.BaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&cfg.Generator.Workers, validation.Min(0)),
		validation.Field(&cfg.Generator.FeedLimit, validation.Min(0)),
		validation.Field(&cfg.Generator.RenderTimeout, validation.Min(time.Duration(0))),
	)
}

func absoluteURL(value any) error {
	raw, _ := value.(string)
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return validation.NewError("validation_absolute_url", "must be an absolute URL")
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
