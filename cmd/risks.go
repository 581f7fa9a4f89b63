package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/iam-copilot/internal/risk"
	"github.com/frahmantamala/iam-copilot/internal/riskview"
)

var (
	risksCmd = &cobra.Command{
		RunE:  runRisks,
		Use:   "risks",
		Short: "report risk topics found in the snapshot without writing the database",
	}
	risksListUsers bool
)

func init() {
	risksCmd.Flags().BoolVarP(&risksListUsers, "users", "u", false, "list the user ids under each topic")
}

func runRisks(cmd *cobra.Command, _ []string) error {
	cfg, lg, err := setup()
	if err != nil {
		return err
	}

	service, err := newRiskViewService(cfg, nil, lg)
	if err != nil {
		return err
	}
	assessment, err := service.Assess()
	if err != nil {
		return err
	}

	printAssessment(cmd.OutOrStdout(), assessment, risksListUsers)
	return nil
}

func printAssessment(out io.Writer, a *riskview.Assessment, listUsers bool) {
	fmt.Fprintf(out, "Reference date %s, %d users, %d at risk\n\n",
		a.ReferenceDate.Format("2006-01-02"), len(a.Snapshot.Users), len(a.Assignment))

	byTopic := a.UsersByTopic()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RISK TOPIC\tUSERS\tDESCRIPTION")
	for _, t := range risk.Priority() {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", t, len(byTopic[t]), t.Description())
		if !listUsers || len(byTopic[t]) == 0 {
			continue
		}
		ids := make([]string, 0, len(byTopic[t]))
		for _, u := range byTopic[t] {
			ids = append(ids, u.UserID)
		}
		fmt.Fprintf(tw, "\t\t%s\n", strings.Join(ids, ", "))
	}
	_ = tw.Flush()
}
