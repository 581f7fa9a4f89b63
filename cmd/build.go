package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/iam-copilot/internal/core/events"
	"github.com/frahmantamala/iam-copilot/internal/risk"
	"github.com/frahmantamala/iam-copilot/internal/riskview"
)

var (
	buildCmd = &cobra.Command{
		RunE:  runBuild,
		Use:   "build",
		Short: "build the risk database from the identity snapshot",
	}
	buildForce bool
)

func init() {
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "replace the database file instead of rewriting its tables")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, lg, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus(lg)
	bus.Subscribe(events.EventTypeRiskViewBuilt, func(_ context.Context, e events.Event) error {
		lg.Info("risk database ready", "event_id", e.EventID(), "payload", e.Payload())
		return nil
	})
	defer bus.Wait()

	service, err := newRiskViewService(cfg, bus, lg)
	if err != nil {
		return err
	}

	report, err := service.Rebuild(ctx, riskview.BuildOptions{ForceRecreate: buildForce})
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(out io.Writer, report *riskview.BuildReport) {
	verb := "Rebuilt"
	if report.Recreated {
		verb = "Created"
	}
	fmt.Fprintf(out, "%s %s in %s\n", verb, report.Path, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "users=%d roles=%d applications=%d groups=%d resources=%d\n",
		report.Users, report.Roles, report.Applications, report.Groups, report.Resources)
	if report.Skipped > 0 {
		fmt.Fprintf(out, "skipped %d associations referencing unknown ids\n", report.Skipped)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RISK TOPIC\tUSERS")
	for _, t := range risk.Priority() {
		fmt.Fprintf(tw, "%s\t%d\n", t, report.TopicCounts[t])
	}
	fmt.Fprintf(tw, "total at risk\t%d\n", report.AtRisk)
	_ = tw.Flush()
}
