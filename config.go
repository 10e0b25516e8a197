package blog

import "github.com/goliatone/go-blog/internal/runtimeconfig"

var (
	ErrContentDirRequired            = runtimeconfig.ErrContentDirRequired
	ErrGeneratorOutputDirRequired    = runtimeconfig.ErrGeneratorOutputDirRequired
	ErrManifestDriverUnknown         = runtimeconfig.ErrManifestDriverUnknown
	ErrManifestDSNRequired           = runtimeconfig.ErrManifestDSNRequired
	ErrManifestCacheRequiresDatabase = runtimeconfig.ErrManifestCacheRequiresDatabase
	ErrLoggingProviderRequired       = runtimeconfig.ErrLoggingProviderRequired
	ErrLoggingProviderUnknown        = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid           = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid          = runtimeconfig.ErrLoggingFormatInvalid
)

type (
	Config               = runtimeconfig.Config
	PostsConfig          = runtimeconfig.PostsConfig
	MarkdownParserConfig = runtimeconfig.MarkdownParserConfig
	GeneratorConfig      = runtimeconfig.GeneratorConfig
	ManifestConfig       = runtimeconfig.ManifestConfig
	CommandsConfig       = runtimeconfig.CommandsConfig
	LoggingConfig        = runtimeconfig.LoggingConfig
)

// DefaultConfig returns defaults suited to a local blog checkout.
func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig reads a YAML configuration file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	return runtimeconfig.Load(path)
}
