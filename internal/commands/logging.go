package commands

import (
	"strings"

	"github.com/goliatone/go-blog/internal/logging"
	"github.com/goliatone/go-blog/pkg/interfaces"
)

const commandModuleRoot = "blog.commands"

// CommandLogger returns the logger for a group of post commands, named
// blog.commands.<module>.
func CommandLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	name := strings.Trim(strings.TrimSpace(module), ".")
	if name == "" {
		name = "posts"
	}
	logger := logging.ModuleLogger(provider, commandModuleRoot+"."+name)
	return logging.WithFields(logger, map[string]any{"command_module": name})
}

// logOutcome writes one entry per finished command. Failed posts inside an
// otherwise successful command are reported as a warning.
func logOutcome(info TelemetryInfo) {
	fields := make(map[string]any, len(info.Fields)+6)
	for key, value := range info.Fields {
		fields[key] = value
	}
	for key, value := range info.Outcome.Fields() {
		fields[key] = value
	}
	entry := logging.WithFields(logging.EnsureLogger(info.Logger), fields)
	args := []any{"duration_ms", info.Duration.Milliseconds()}

	switch info.Status {
	case TelemetryStatusContextError:
		entry.Error("blog command cancelled", append(args, "error", info.Error)...)
	case TelemetryStatusFailed:
		entry.Error("blog command failed", append(args, "error", info.Error)...)
	default:
		if info.Outcome.Failed > 0 {
			entry.Warn("blog command finished with failed posts", args...)
			return
		}
		entry.Info("blog command finished", args...)
	}
}
