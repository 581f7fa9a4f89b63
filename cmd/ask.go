package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/iam-copilot/internal/core/events"
)

var (
	askCmd = &cobra.Command{
		RunE:  runAsk,
		Use:   "ask [question]",
		Short: "answer one question about the risk database",
		Args:  cobra.MinimumNArgs(1),
	}
	askThreadID string
	askShowSQL  bool
)

func init() {
	askCmd.Flags().StringVarP(&askThreadID, "thread", "t", "", "conversation thread to continue")
	askCmd.Flags().BoolVar(&askShowSQL, "sql", false, "print the executed SQL")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, lg, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus(lg)
	defer bus.Wait()

	cp, err := newCopilot(ctx, cfg, bus, lg)
	if err != nil {
		return err
	}
	defer cp.Close()

	answer, err := cp.Service.Ask(ctx, askThreadID, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askShowSQL && answer.SQL != "" {
		fmt.Fprintf(out, "SQL: %s\n\n", answer.SQL)
	}
	fmt.Fprintln(out, answer.Response)
	fmt.Fprintf(cmd.ErrOrStderr(), "thread: %s\n", answer.ThreadID)
	return nil
}
