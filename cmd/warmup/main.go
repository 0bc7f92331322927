// Package main is the one-shot warm-up tool: it crawls the department
// hierarchy of the requested academic periods into the store, optionally
// publishing a snapshot afterwards.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/garyellow/nycu-course-go/internal/config"
	"github.com/garyellow/nycu-course-go/internal/department"
	"github.com/garyellow/nycu-course-go/internal/kvstore"
	"github.com/garyellow/nycu-course-go/internal/logger"
	"github.com/garyellow/nycu-course-go/internal/nycuapi"
	"github.com/garyellow/nycu-course-go/internal/r2client"
	"github.com/garyellow/nycu-course-go/internal/snapshot"
	"github.com/garyellow/nycu-course-go/internal/warmup"
)

type options struct {
	periods []string
	latest  int
	timeout time.Duration
	publish bool
}

func parseFlags(args []string, defaultLatest int, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("warmup", flag.ContinueOnError)
	fs.SetOutput(stderr)
	periods := fs.String("periods", "", "Comma-separated academic periods to crawl, e.g. 1131,1132 (default: most recent)")
	latest := fs.Int("latest", defaultLatest, "Number of most recent periods to crawl when -periods is empty")
	timeout := fs.Duration("timeout", time.Hour, "Overall time limit")
	publish := fs.Bool("publish", false, "Upload a store snapshot to R2 afterwards (sqlite backend only)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		periods: warmup.ParsePeriods(*periods),
		latest:  *latest,
		timeout: *timeout,
		publish: *publish,
	}
	if *periods != "" && len(opts.periods) == 0 {
		return options{}, fmt.Errorf("no valid period in %q", *periods)
	}
	if len(opts.periods) == 0 && opts.latest <= 0 {
		return options{}, errors.New("-latest must be positive when -periods is empty")
	}
	return opts, nil
}

func main() {
	cfg, err := config.LoadForMode(config.WarmupMode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	opts, err := parseFlags(os.Args[1:], cfg.WarmupPeriods, os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if err := run(cfg, opts); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "\nWarm-up failed: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts options) error {
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Shutdown(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	store, err := kvstore.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() { _ = store.Close() }()

	client := nycuapi.NewClient(nycuapi.Config{
		Endpoint: cfg.UpstreamEndpoint,
		Timeout:  cfg.UpstreamTimeout,
		Throttle: cfg.UpstreamThrottle,
	})
	warmer := warmup.NewDepartmentWarmer(department.NewResolver(client),
		department.NewRepository(store), log, nil, 0)
	defer warmer.Close()

	start := time.Now()
	stats, err := warmup.Run(ctx, client, warmer, log, warmup.Options{
		Periods: opts.periods,
		Latest:  opts.latest,
	})
	fmt.Printf("Crawled %d departments across periods %v in %v\n",
		stats.Departments, stats.Periods, time.Since(start).Round(time.Second))
	if err != nil {
		return err
	}

	if opts.publish {
		return publish(ctx, cfg, store, log)
	}
	return nil
}

func publish(ctx context.Context, cfg *config.Config, store kvstore.Store, log *logger.Logger) error {
	src, ok := store.(snapshot.Source)
	if !ok || !cfg.R2Enabled() {
		return errors.New("-publish needs the sqlite backend and R2 settings")
	}
	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    cfg.R2Endpoint,
		AccessKeyID: cfg.R2AccessKeyID,
		SecretKey:   cfg.R2SecretAccessKey,
		BucketName:  cfg.R2BucketName,
	})
	if err != nil {
		return err
	}
	etag, err := snapshot.New(client, snapshot.Config{Key: cfg.R2SnapshotKey, TempDir: cfg.DataDir}, nil).Publish(ctx, src)
	if err != nil {
		return err
	}
	log.WithField("etag", etag).WithField("key", cfg.R2SnapshotKey).Info("Snapshot published")
	return nil
}
