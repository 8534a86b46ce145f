package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"ops_server/config"
	"ops_server/core/domain"
	"ops_server/core/port/in"
	"ops_server/core/port/out"
	"ops_server/core/service/runbook"
	"ops_server/internal/bootstrap"
)

var runbookCmd = &cobra.Command{
	Use:   "runbook",
	Short: "Generate and inspect 7-day runbooks",
}

var runbookGenerateCmd = &cobra.Command{
	Use:   "generate [staff-id]",
	Short: "Replace the staff's window with a fresh expansion",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunbookGenerate,
}

var runbookPreviewCmd = &cobra.Command{
	Use:   "preview [staff-id]",
	Short: "Expand the window without writing",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunbookPreview,
}

var runbookListCmd = &cobra.Command{
	Use:   "list [staff-id]",
	Short: "List stored tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunbookList,
}

var (
	runbookDate  string
	runbookTo    string
	runbookAsync bool
	runbookJSON  bool
)

func init() {
	runbookCmd.AddCommand(runbookGenerateCmd, runbookPreviewCmd, runbookListCmd)

	today := time.Now().Format(domain.DateLayout)
	for _, c := range []*cobra.Command{runbookGenerateCmd, runbookPreviewCmd, runbookListCmd} {
		c.Flags().StringVar(&runbookDate, "date", today, "Window start (YYYY-MM-DD)")
		c.Flags().BoolVar(&runbookJSON, "json", false, "Print JSON instead of a table")
	}
	runbookListCmd.Flags().StringVar(&runbookTo, "to", "", "Last day (defaults to date+6)")
	runbookGenerateCmd.Flags().BoolVar(&runbookAsync, "async", false, "Queue the job on Redis instead of running it")
}

func withDeps(fn func(ctx context.Context, deps *bootstrap.Dependencies) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	deps, cleanup, err := bootstrap.NewDependencies(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return fn(ctx, deps)
}

func runRunbookGenerate(cmd *cobra.Command, args []string) error {
	req := &in.GenerateRunbookRequest{StaffID: args[0], Date: runbookDate}
	return withDeps(func(ctx context.Context, deps *bootstrap.Dependencies) error {
		if runbookAsync {
			producer := deps.JobProducer()
			if producer == nil {
				return fmt.Errorf("--async needs REDIS_URL")
			}
			if err := runbook.ValidateRequest(req); err != nil {
				return err
			}
			job := &out.RunbookGenerateJob{StaffID: req.StaffID, Date: req.Date, Source: "cli"}
			if err := producer.PublishRunbookGenerate(ctx, job); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s from %s\n", req.StaffID, req.Date)
			return nil
		}

		result, err := deps.Runbooks.Generate(ctx, req)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result)
	})
}

func runRunbookPreview(cmd *cobra.Command, args []string) error {
	return withDeps(func(ctx context.Context, deps *bootstrap.Dependencies) error {
		result, err := deps.Runbooks.Preview(ctx, &in.GenerateRunbookRequest{StaffID: args[0], Date: runbookDate})
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result)
	})
}

func runRunbookList(cmd *cobra.Command, args []string) error {
	return withDeps(func(ctx context.Context, deps *bootstrap.Dependencies) error {
		tasks, err := deps.Runbooks.ListTasks(ctx, args[0], runbookDate, runbookTo)
		if err != nil {
			return err
		}
		if runbookJSON {
			return writeJSON(cmd.OutOrStdout(), tasks)
		}
		return printTasks(cmd.OutOrStdout(), tasks)
	})
}

func printResult(w io.Writer, result *in.RunbookResult) error {
	if runbookJSON {
		return writeJSON(w, result)
	}
	verb := "generated"
	if result.DryRun {
		verb = "would generate"
	}
	fmt.Fprintf(w, "%s %d tasks for %s (%s..%s)\n", verb, result.Generated, result.StaffID, result.From, result.To)
	return printTasks(w, result.Tasks)
}

func printTasks(w io.Writer, tasks []domain.TaskInstance) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTIME\tBLOCK\tTYPE\tPERSONA\tSTATUS")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.TaskDate, t.ScheduledTime, t.TimeBlock, t.TaskType, t.PersonaID, t.Status)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
