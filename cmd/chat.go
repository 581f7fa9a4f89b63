package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/copilot"
	"github.com/frahmantamala/iam-copilot/internal/core/events"
)

const (
	chatExit    = "//exit"
	chatRestart = "//restart"

	welcomeMessage = `IAM Copilot. Ask about the users, roles, applications, groups and resources in the snapshot,
for example "which users have no MFA?". Type //restart for a new conversation or //exit to quit.`
)

var chatCmd = &cobra.Command{
	RunE:  runChatCommand,
	Use:   "chat",
	Short: "interactive conversation about the risk database",
}

type chatSession interface {
	Ask(ctx context.Context, threadID, question string) (*copilot.Answer, error)
	Reset(ctx context.Context, threadID string) error
}

func runChatCommand(cmd *cobra.Command, _ []string) error {
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

	return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cp.Service)
}

// runChat reads one question per line until EOF, //exit or cancellation of ctx.
func runChat(ctx context.Context, in io.Reader, out io.Writer, session chatSession) error {
	fmt.Fprintln(out, welcomeMessage)

	threadID := uuid.NewString()
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case chatExit:
			fmt.Fprintln(out, "Goodbye.")
			return nil
		case chatRestart:
			if err := session.Reset(ctx, threadID); err != nil {
				return err
			}
			threadID = uuid.NewString()
			fmt.Fprintln(out, "Started a new conversation.")
			continue
		}

		answer, err := session.Ask(ctx, threadID, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if _, ok := internal.IsAppError(err); ok && !errors.Is(err, internal.ErrStoreMissing) {
				fmt.Fprintf(out, "Copilot: %s\n", errorMessage(err))
				continue
			}
			return err
		}
		fmt.Fprintf(out, "Copilot: %s\n", answer.Response)
	}
}
