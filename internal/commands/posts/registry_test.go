package postscmd

import (
	"context"
	"errors"
	"testing"
	"time"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	"github.com/goliatone/go-blog/internal/commands/fixtures"
	"github.com/goliatone/go-blog/internal/generator"
	"github.com/goliatone/go-blog/internal/posts"
	"github.com/goliatone/go-blog/internal/render"
)

func TestRegisterPostCommandsRegistersHandlers(t *testing.T) {
	reg := fixtures.NewRecordingRegistry()
	set, err := RegisterPostCommands(reg, Dependencies{
		Store:    posts.NewStore(),
		Content:  contentFS(),
		Renderer: render.New(render.Config{}),
	}, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if set.Load == nil || set.Render == nil || set.Build == nil {
		t.Fatalf("expected every handler, got %+v", set)
	}
	if len(reg.Handlers) != 3 {
		t.Fatalf("expected three registrations, got %d", len(reg.Handlers))
	}
}

func TestRegisterPostCommandsRequiresStore(t *testing.T) {
	if _, err := RegisterPostCommands(nil, Dependencies{Renderer: render.New(render.Config{})}, nil); err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestRegisterPostCommandsPropagatesRegistryError(t *testing.T) {
	reg := fixtures.NewRecordingRegistry()
	reg.Err = errors.New("registry down")
	_, err := RegisterPostCommands(reg, Dependencies{Store: posts.NewStore(), Renderer: render.New(render.Config{})}, nil)
	if !errors.Is(err, reg.Err) {
		t.Fatalf("expected registry error, got %v", err)
	}
}

func TestRegisterBuildCron(t *testing.T) {
	builder := &stubBuilder{result: &generator.BuildResult{}}
	set, err := RegisterPostCommands(nil, Dependencies{
		Store:    posts.NewStore(),
		Renderer: render.New(render.Config{}),
		Builder:  builder,
	}, nil, WithCommandTimeout(time.Second))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	recorder := fixtures.NewCronRecorder()
	cfg := command.HandlerConfig{Expression: "@hourly"}
	if err := RegisterBuildCron(recorder.Registrar(), set.Build, cfg, BuildSiteCommand{Incremental: true}); err != nil {
		t.Fatalf("register cron: %v", err)
	}
	if len(recorder.Registrations) != 1 {
		t.Fatalf("expected one cron registration, got %d", len(recorder.Registrations))
	}
	run, ok := recorder.Registrations[0].Handler.(func() error)
	if !ok {
		t.Fatalf("expected func() error handler, got %T", recorder.Registrations[0].Handler)
	}
	if err := run(); err != nil {
		t.Fatalf("cron run: %v", err)
	}
	if len(builder.calls) != 1 || !builder.calls[0].Incremental {
		t.Fatalf("expected incremental build, got %+v", builder.calls)
	}

	if err := RegisterBuildCron(nil, set.Build, cfg, BuildSiteCommand{}); err != nil {
		t.Fatalf("expected nil registrar to be a no-op, got %v", err)
	}
}

func TestDispatchLoadPostsCommand(t *testing.T) {
	store := posts.NewStore()
	set, err := RegisterPostCommands(nil, Dependencies{
		Store:    store,
		Content:  contentFS(),
		Renderer: render.New(render.Config{}),
	}, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	sub := dispatcher.SubscribeCommand(set.Load, runner.WithMaxRetries(0))
	t.Cleanup(sub.Unsubscribe)

	_ = dispatcher.Dispatch(context.Background(), LoadPostsCommand{Directory: "content", Pattern: "a.md"})
	if _, ok := store.Get("alpha"); !ok {
		t.Fatal("expected dispatched command to load the post")
	}
}
