package commands

import (
	"context"
	"time"

	"github.com/goliatone/go-blog/pkg/interfaces"
	command "github.com/goliatone/go-command"
)

// TelemetryStatus classifies how a command ended.
type TelemetryStatus string

const (
	TelemetryStatusSuccess      TelemetryStatus = "success"
	TelemetryStatusFailed       TelemetryStatus = "failed"
	TelemetryStatusContextError TelemetryStatus = "context_error"
)

// Outcome summarises the posts a command touched. Handlers report it with
// ReportOutcome while they run.
type Outcome struct {
	// Slug is set by commands acting on a single post.
	Slug    string
	Sources int
	Posts   int
	Skipped int
	Failed  int
	Files   int
}

// Fields returns the non-zero outcome values as log fields.
func (o Outcome) Fields() map[string]any {
	fields := map[string]any{}
	if o.Slug != "" {
		fields["slug"] = o.Slug
	}
	for key, value := range map[string]int{
		"source_count":  o.Sources,
		"post_count":    o.Posts,
		"skipped_count": o.Skipped,
		"failed_count":  o.Failed,
		"file_count":    o.Files,
	} {
		if value != 0 {
			fields[key] = value
		}
	}
	return fields
}

type outcomeKey struct{}

func withOutcome(ctx context.Context) (context.Context, *Outcome) {
	outcome := &Outcome{}
	return context.WithValue(ctx, outcomeKey{}, outcome), outcome
}

// ReportOutcome records what the running command did to posts. It is a no-op
// outside Handler.Execute.
func ReportOutcome(ctx context.Context, outcome Outcome) {
	if target, ok := ctx.Value(outcomeKey{}).(*Outcome); ok && target != nil {
		*target = outcome
	}
}

// TelemetryInfo is handed to telemetry callbacks once a command returns.
type TelemetryInfo struct {
	Command   string
	Operation string
	Fields    map[string]any
	Outcome   Outcome
	Duration  time.Duration
	Error     error
	Status    TelemetryStatus
	Logger    interfaces.Logger
}

// Telemetry is invoked after every execution in place of the default logs.
type Telemetry[T command.Message] func(ctx context.Context, msg T, info TelemetryInfo)

// DefaultTelemetry logs the outcome of each command, post counts included.
func DefaultTelemetry[T command.Message](logger interfaces.Logger) Telemetry[T] {
	return func(_ context.Context, _ T, info TelemetryInfo) {
		if logger != nil {
			info.Logger = logger
		}
		logOutcome(info)
	}
}
