// Package logging provides module-scoped loggers for the blog runtime. Every
// component asks for its logger by module name so entries can be filtered
// consistently regardless of the provider behind them.
package logging

import (
	"maps"
	"strings"

	"github.com/goliatone/go-blog/pkg/interfaces"
)

const (
	RootModule      = "blog"
	PostsModule     = "blog.posts"
	RenderModule    = "blog.render"
	GeneratorModule = "blog.generator"
	ManifestModule  = "blog.manifest"
	CommandsModule  = "blog.commands"
)

const (
	fieldModule    = "module"
	fieldSource    = "source"
	fieldPostSlug  = "post_slug"
	fieldPostIndex = "post_index"
)

// ModuleLogger returns a logger scoped to module. A nil provider, or one that
// returns nil, yields the no-op logger.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	module = strings.TrimSpace(module)
	if module == "" {
		module = RootModule
	}

	var logger interfaces.Logger = noopLogger{}
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}
	return WithFields(logger, map[string]any{fieldModule: module})
}

// PostsLogger returns the logger reserved for post loading.
func PostsLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, PostsModule)
}

// RenderLogger returns the logger reserved for Markdown rendering.
func RenderLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, RenderModule)
}

// GeneratorLogger returns the logger reserved for static site builds.
func GeneratorLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, GeneratorModule)
}

// ManifestLogger returns the logger reserved for the build manifest store.
func ManifestLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, ManifestModule)
}

// WithFields attaches structured fields when logger implements
// interfaces.FieldsLogger. Other loggers are returned unchanged.
func WithFields(logger interfaces.Logger, fields map[string]any) interfaces.Logger {
	if logger == nil || len(fields) == 0 {
		return logger
	}
	fieldsLogger, ok := logger.(interfaces.FieldsLogger)
	if !ok {
		return logger
	}
	return fieldsLogger.WithFields(maps.Clone(fields))
}

// WithPostContext enriches logger with the source file, slug and position of
// a post. Empty values are skipped; a negative index is skipped too.
func WithPostContext(logger interfaces.Logger, source, slug string, index int) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(source); trimmed != "" {
		fields[fieldSource] = trimmed
	}
	if trimmed := strings.TrimSpace(slug); trimmed != "" {
		fields[fieldPostSlug] = trimmed
	}
	if index >= 0 {
		fields[fieldPostIndex] = index
	}
	return WithFields(logger, fields)
}

// EnsureLogger returns logger, or the no-op logger when it is nil.
func EnsureLogger(logger interfaces.Logger) interfaces.Logger {
	if logger == nil {
		return noopLogger{}
	}
	return logger
}
