// Package cli holds the operator subcommands of the fabricdesk binary.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/fabricdesk/fabricdesk/jobs"
)

// JobRunner enqueues and inspects background jobs.
type JobRunner interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

// ValuationPrinter renders valuations.
type ValuationPrinter interface {
	Show(ctx context.Context, out io.Writer, opts ValuationOptions) error
}

// Commands bundles the helpers subcommands dispatch to.
type Commands struct {
	Jobs      JobRunner
	Valuation ValuationPrinter
}

const usage = `usage:
  fabricdesk                                  run the HTTP server
  fabricdesk valuation show [-strategy s] [-lang tag] [-json]
  fabricdesk valuation snapshot               enqueue a valuation snapshot
  fabricdesk idempotency cleanup              enqueue idempotency key cleanup
  fabricdesk jobs stats                       print default queue stats
`

// Run dispatches args and returns the process exit code.
func Run(ctx context.Context, args []string, cmds Commands, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] + " " + args[1] {
	case "valuation show":
		fs := flag.NewFlagSet("valuation show", flag.ContinueOnError)
		fs.SetOutput(stderr)
		var opts ValuationOptions
		fs.StringVar(&opts.Strategy, "strategy", "", "valuation strategy: fabric or subbatch")
		fs.StringVar(&opts.Lang, "lang", "", "BCP 47 tag for number formatting")
		fs.BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		if err := cmds.Valuation.Show(ctx, stdout, opts); err != nil {
			_, _ = fmt.Fprintf(stderr, "valuation show: %v\n", err)
			return 1
		}
		return 0
	case "valuation snapshot":
		return trigger(ctx, cmds.Jobs, jobs.TaskValuationSnapshot, stdout, stderr)
	case "idempotency cleanup":
		return trigger(ctx, cmds.Jobs, jobs.TaskIdempotencyCleanup, stdout, stderr)
	case "jobs stats":
		stats, err := cmds.Jobs.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
}

func trigger(ctx context.Context, runner JobRunner, name string, stdout, stderr io.Writer) int {
	info, err := runner.Trigger(ctx, name)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return 0
}
