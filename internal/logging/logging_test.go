package logging

import (
	"context"
	"testing"

	"github.com/goliatone/go-blog/pkg/interfaces"
)

type recordingLogger struct {
	fields   []map[string]any
	contexts []context.Context
}

func (r *recordingLogger) Trace(string, ...any) {}
func (r *recordingLogger) Debug(string, ...any) {}
func (r *recordingLogger) Info(string, ...any)  {}
func (r *recordingLogger) Warn(string, ...any)  {}
func (r *recordingLogger) Error(string, ...any) {}
func (r *recordingLogger) Fatal(string, ...any) {}

func (r *recordingLogger) WithFields(fields map[string]any) interfaces.Logger {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	r.fields = append(r.fields, copied)
	return r
}

func (r *recordingLogger) WithContext(ctx context.Context) interfaces.Logger {
	r.contexts = append(r.contexts, ctx)
	return r
}

type stubProvider struct {
	requested []string
	logger    interfaces.Logger
}

func (s *stubProvider) GetLogger(name string) interfaces.Logger {
	s.requested = append(s.requested, name)
	return s.logger
}

func TestModuleLoggerFallsBackToNoOp(t *testing.T) {
	logger := ModuleLogger(nil, PostsModule)
	if _, ok := logger.(noopLogger); !ok {
		t.Fatalf("expected noopLogger fallback, got %T", logger)
	}
	logger = logger.WithContext(context.Background())
	logger.Debug("noop")
}

func TestModuleLoggerAttachesModuleField(t *testing.T) {
	recorder := &recordingLogger{}
	provider := &stubProvider{logger: recorder}

	RenderLogger(provider)

	if len(provider.requested) != 1 || provider.requested[0] != RenderModule {
		t.Fatalf("expected provider to be asked for %q, got %v", RenderModule, provider.requested)
	}
	if len(recorder.fields) != 1 || recorder.fields[0]["module"] != RenderModule {
		t.Fatalf("expected module field, got %#v", recorder.fields)
	}
}

func TestModuleLoggerDefaultsEmptyModule(t *testing.T) {
	provider := &stubProvider{logger: &recordingLogger{}}
	ModuleLogger(provider, "  ")
	if provider.requested[0] != RootModule {
		t.Fatalf("expected root module, got %q", provider.requested[0])
	}
}

func TestWithPostContextSkipsEmptyValues(t *testing.T) {
	recorder := &recordingLogger{}

	WithPostContext(recorder, "posts/laravel.md", "", 2)

	if len(recorder.fields) != 1 {
		t.Fatalf("expected one WithFields call, got %d", len(recorder.fields))
	}
	got := recorder.fields[0]
	if got["source"] != "posts/laravel.md" {
		t.Fatalf("expected source field, got %#v", got)
	}
	if _, ok := got["post_slug"]; ok {
		t.Fatalf("expected empty slug to be skipped, got %#v", got)
	}
	if got["post_index"] != 2 {
		t.Fatalf("expected post index 2, got %#v", got["post_index"])
	}

	WithPostContext(recorder, "", "", -1)
	if len(recorder.fields) != 1 {
		t.Fatalf("expected no fields call for empty context, got %d", len(recorder.fields))
	}
}

func TestContextFieldsMergeAndCopy(t *testing.T) {
	ctx := ContextWithFields(context.Background(), map[string]any{"build_id": "b1"})
	ctx = ContextWithFields(ctx, map[string]any{"post_slug": "value-objects"})

	fields := ContextFields(ctx)
	if fields["build_id"] != "b1" || fields["post_slug"] != "value-objects" {
		t.Fatalf("unexpected merged fields: %#v", fields)
	}

	fields["build_id"] = "mutated"
	if ContextFields(ctx)["build_id"] != "b1" {
		t.Fatalf("expected ContextFields to return a copy")
	}
}
