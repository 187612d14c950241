package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// librariesCommand creates the check-libraries command.
func (c *CLI) librariesCommand() *cobra.Command {
	var (
		workspace string
		clusterID string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "check-libraries",
		Short: "Find outdated or vulnerable libraries on a cluster",
		Long: `Find outdated or vulnerable libraries on a cluster.

Pinned PyPI libraries installed on the cluster are checked against a
table of known-vulnerable version ranges and against the latest release
on PyPI. Findings are reported with a severity: high for versions with
known security issues, medium for outdated security-relevant packages,
low for ordinary updates.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheckLibraries(cmd.Context(), workspace, clusterID, output)
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace name from config")
	cmd.Flags().StringVarP(&clusterID, "cluster-id", "c", "", "cluster ID to check")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write findings to a JSON file")
	_ = cmd.MarkFlagRequired("cluster-id")

	return cmd
}

func (c *CLI) runCheckLibraries(ctx context.Context, workspace, clusterID, output string) error {
	tk, err := c.newToolkit(workspace)
	if err != nil {
		return err
	}
	defer tk.Close()

	prog := newProgress(c.Logger)
	issues, err := tk.library.CheckLibraries(ctx, clusterID)
	if err != nil {
		return fmt.Errorf("check libraries on %s: %w", clusterID, err)
	}
	prog.done(fmt.Sprintf("Checked libraries on %s", clusterID))

	if len(issues) == 0 {
		printSuccess("No outdated or vulnerable libraries found")
		return nil
	}

	rows := make([][]string, 0, len(issues))
	for _, issue := range issues {
		rows = append(rows, []string{
			issue.LibraryName, issue.CurrentVersion,
			issue.RecommendedVersion, issue.Reason, issue.Severity,
		})
	}
	printTable([]string{"Library", "Current", "Recommended", "Reason", "Severity"}, rows, 4)

	if output != "" {
		if err := writeJSON(output, issues); err != nil {
			return err
		}
		printInfo("Results written to %s", output)
	}
	return nil
}
