package blog_test

import (
	"errors"
	"testing"

	blog "github.com/goliatone/go-blog"
)

func TestConfigValidateManifestCacheRequiresDatabase(t *testing.T) {
	cfg := blog.DefaultConfig()
	cfg.Manifest.Cache = true
	if err := cfg.Validate(); !errors.Is(err, blog.ErrManifestCacheRequiresDatabase) {
		t.Fatalf("expected ErrManifestCacheRequiresDatabase, got %v", err)
	}
}

func TestConfigValidateManifestDriverUnknown(t *testing.T) {
	cfg := blog.DefaultConfig()
	cfg.Manifest.Driver = "mongo"
	if err := cfg.Validate(); !errors.Is(err, blog.ErrManifestDriverUnknown) {
		t.Fatalf("expected ErrManifestDriverUnknown, got %v", err)
	}
}

func TestConfigValidateLoggingProviderUnknown(t *testing.T) {
	cfg := blog.DefaultConfig()
	cfg.Logging.Provider = "syslog"
	if err := cfg.Validate(); !errors.Is(err, blog.ErrLoggingProviderUnknown) {
		t.Fatalf("expected ErrLoggingProviderUnknown, got %v", err)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := blog.DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
