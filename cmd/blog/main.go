package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	blog "github.com/goliatone/go-blog"
	postscmd "github.com/goliatone/go-blog/internal/commands/posts"
)

const usage = `usage: blog [-config file] <command> [flags]

commands:
  list                 list loaded posts, newest first
  preview -slug SLUG   print the rendered HTML of one post
  build [-out DIR]     generate the static site
  clean                remove the output directory
`

var moduleBuilder = buildModule

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("blog: %v", err)
	}
}

func buildModule(ctx context.Context, configPath string, opts ...blog.Option) (*blog.Module, error) {
	cfg := blog.DefaultConfig()
	if configPath != "" {
		loaded, err := blog.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	return blog.New(ctx, cfg, opts...)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("blog", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	configPath := global.String("config", "", "Path to a YAML configuration file")
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w\n%s", err, usage)
	}
	rest := global.Args()
	if len(rest) == 0 {
		return errors.New("missing command\n" + usage)
	}

	switch rest[0] {
	case "list":
		return runList(ctx, *configPath, rest[1:], out)
	case "preview":
		return runPreview(ctx, *configPath, rest[1:], out)
	case "build":
		return runBuild(ctx, *configPath, rest[1:], out)
	case "clean":
		return runClean(ctx, *configPath, out)
	default:
		return fmt.Errorf("unknown command %q\n%s", rest[0], usage)
	}
}

// loadModule builds the module and loads the content directory. Rejected
// posts are reported on out without aborting.
func loadModule(ctx context.Context, configPath string, out io.Writer, opts ...blog.Option) (*blog.Module, error) {
	module, err := moduleBuilder(ctx, configPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap module: %w", err)
	}
	result, err := module.LoadContent(ctx)
	if err != nil {
		_ = module.Close()
		return nil, fmt.Errorf("load posts: %w", err)
	}
	for _, loadErr := range result.Errors {
		fmt.Fprintf(out, "skipped: %v\n", loadErr)
	}
	return module, nil
}

func runList(ctx context.Context, configPath string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("blog-list", flag.ContinueOnError)
	drafts := fs.Bool("drafts", false, "Include draft posts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	module, err := loadModule(ctx, configPath, out)
	if err != nil {
		return err
	}
	defer module.Close()

	for _, post := range module.Posts().Newest() {
		if post.Meta.Draft && !*drafts {
			continue
		}
		date := "undated   "
		if post.HasPublishedDate() {
			date = post.PublishedDate.Format("2006-01-02")
		}
		fmt.Fprintf(out, "%s  %-32s  %s\n", date, post.Slug, post.Title)
	}
	return nil
}

func runPreview(ctx context.Context, configPath string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("blog-preview", flag.ContinueOnError)
	slug := fs.String("slug", "", "Slug of the post to render")
	page := fs.Bool("page", false, "Render the full themed page instead of the fragment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*slug) == "" {
		return errors.New("-slug is required")
	}

	module, err := loadModule(ctx, configPath, out, blog.WithCommandOptions(postscmd.OnRender(func(_ string, html string) {
		fmt.Fprintln(out, html)
	})))
	if err != nil {
		return err
	}
	defer module.Close()

	return module.Commands().Render.Execute(ctx, postscmd.RenderPostCommand{Slug: *slug, Page: *page})
}

func runBuild(ctx context.Context, configPath string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("blog-build", flag.ContinueOnError)
	outputDir := fs.String("out", "", "Output directory (defaults to the configured one)")
	incremental := fs.Bool("incremental", false, "Skip posts whose output is up to date")
	dryRun := fs.Bool("dry-run", false, "Render without writing files")
	drafts := fs.Bool("drafts", false, "Publish draft posts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var result *blog.BuildResult
	module, err := loadModule(ctx, configPath, out, blog.WithCommandOptions(postscmd.OnBuild(func(r *blog.BuildResult) {
		result = r
	})))
	if err != nil {
		return err
	}
	defer module.Close()

	buildErr := module.Commands().Build.Execute(ctx, postscmd.BuildSiteCommand{
		OutputDir:     *outputDir,
		Incremental:   *incremental,
		DryRun:        *dryRun,
		IncludeDrafts: *drafts,
	})
	if result != nil {
		fmt.Fprintf(out, "built %d, skipped %d, failed %d, removed %d posts (%d files) in %s\n",
			result.PostsBuilt, result.PostsSkipped, result.PostsFailed, result.PostsRemoved, len(result.Artifacts), result.Duration)
		for _, postErr := range result.Errors {
			fmt.Fprintf(out, "error: %v\n", postErr)
		}
	}
	return buildErr
}

func runClean(ctx context.Context, configPath string, out io.Writer) error {
	module, err := moduleBuilder(ctx, configPath)
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer module.Close()
	if err := module.Generator().Clean(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "output removed")
	return nil
}
