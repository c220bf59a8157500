// Command fulfillmentctl is the operator tool for the job queue and document syncs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/bulkmart/fulfillment/cmd/fulfillment/cli"
	"github.com/bulkmart/fulfillment/internal/app"
	"github.com/bulkmart/fulfillment/internal/platform/cache"
	"github.com/bulkmart/fulfillment/internal/platform/db"
	"github.com/bulkmart/fulfillment/internal/shared"
	"github.com/bulkmart/fulfillment/jobs"
)

const usage = `usage: fulfillmentctl <command> [flags]

commands:
  queue                      show default queue counters
  scheduled [-n N]           list scheduled tasks
  archived [-n N]            list archived tasks
  relay                      run the outbox relay now
  documents status   -lead L [-kind K,...] [-json]
  documents regenerate -lead L -kind K[,K] [-json]
  idempotency cleanup        delete keys older than IDEMPOTENCY_RETENTION
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	switch args[0] {
	case "queue", "scheduled", "archived", "relay":
		return runJobs(ctx, cfg, args, stdout, stderr)
	case "documents":
		return runDocuments(ctx, cfg, args[1:], stdout, stderr)
	case "idempotency":
		return runIdempotency(ctx, cfg, args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	size := fs.Int("n", 10, "page size")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	helper, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = helper.Close() }()

	var out any
	switch args[0] {
	case "queue":
		out, err = helper.InspectQueue(ctx)
	case "scheduled":
		out, err = helper.ListScheduled(ctx, *size)
	case "archived":
		out, err = helper.ListArchived(ctx, *size)
	case "relay":
		out, err = helper.Trigger(ctx, jobs.TaskOutboxRelay)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: encode json: %v\n", args[0], err)
		return 1
	}
	return 0
}

func runDocuments(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || (args[0] != "status" && args[0] != "regenerate") {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	fs := flag.NewFlagSet("documents "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	lead := fs.String("lead", "", "order lead id")
	kinds := fs.String("kind", "", "comma separated document kinds")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "connect database: %v\n", err)
		return 1
	}
	defer pool.Close()
	rdb, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() { _ = rdb.Close() }()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "init jobs client: %v\n", err)
		return 1
	}
	defer func() { _ = jobsClient.Close() }()

	svc := app.NewServices(cfg, logger, pool, rdb, jobsClient)
	helper := cli.NewDocumentsOpsCLI(svc.Outbox, svc.Orchestrator, jobsClient)

	opts := cli.DocumentOptions{LeadID: *lead, JSONOutput: *asJSON, Stdout: stdout, Stderr: stderr}
	if *kinds != "" {
		opts.Kinds = strings.Split(*kinds, ",")
	}
	if args[0] == "status" {
		return helper.StatusCommand(ctx, opts)
	}
	return helper.RegenerateCommand(ctx, opts)
}

func runIdempotency(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "cleanup" {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "connect database: %v\n", err)
		return 1
	}
	defer pool.Close()
	removed, err := shared.NewIdempotencyStore(pool).Cleanup(ctx, cfg.IdempotencyRetention)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "idempotency cleanup: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "removed %d idempotency keys older than %s\n", removed, cfg.IdempotencyRetention)
	return 0
}
