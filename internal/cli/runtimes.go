package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/maintenance"
)

// runtimeFinding is one row of check-runtimes output.
type runtimeFinding struct {
	ClusterName        string `json:"cluster_name"`
	ClusterID          string `json:"cluster_id"`
	CurrentRuntime     string `json:"current_runtime"`
	Status             string `json:"status"`
	DeprecationDate    string `json:"deprecation_date"`
	RecommendedRuntime string `json:"recommended_runtime"`
	Rationale          string `json:"rationale"`
}

// runtimesCommand creates the check-runtimes command.
func (c *CLI) runtimesCommand() *cobra.Command {
	var (
		workspace string
		months    int
		output    string
	)

	cmd := &cobra.Command{
		Use:   "check-runtimes",
		Short: "Find clusters on deprecated or soon-to-be deprecated runtimes",
		Long: `Find clusters on deprecated or soon-to-be deprecated runtimes.

Each cluster's runtime version is compared against the published
end-of-support dates and the set of runtimes still offered for cluster
creation. Clusters already past end of support are DEPRECATED; clusters
whose runtime reaches end of support within the --months window are
SOON_DEPRECATED. An upgrade target is recommended for each finding.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheckRuntimes(cmd.Context(), workspace, months, output)
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace name from config")
	cmd.Flags().IntVarP(&months, "months", "m", 3, "soon-to-be-deprecated threshold in months")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write findings to a JSON file")

	return cmd
}

func (c *CLI) runCheckRuntimes(ctx context.Context, workspace string, months int, output string) error {
	tk, err := c.newToolkit(workspace)
	if err != nil {
		return err
	}
	defer tk.Close()

	prog := newProgress(c.Logger)
	threshold := time.Now().AddDate(0, 0, 30*months)

	deprecated, err := tk.runtime.DeprecatedClusters(ctx, threshold)
	if err != nil {
		return fmt.Errorf("check runtimes: %w", err)
	}
	if len(deprecated) == 0 {
		printSuccess("No clusters found with deprecated or soon-to-be deprecated runtimes")
		return nil
	}

	recommendations, err := tk.runtime.RecommendUpgrades(ctx, deprecated)
	if err != nil {
		return fmt.Errorf("recommend upgrades: %w", err)
	}
	prog.done(fmt.Sprintf("Checked runtimes, %d clusters need attention", len(deprecated)))

	findings := collectRuntimeFindings(deprecated, recommendations)

	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, []string{
			f.ClusterName, f.CurrentRuntime, f.Status,
			f.DeprecationDate, f.RecommendedRuntime,
		})
	}
	printTable([]string{"Cluster", "Runtime", "Status", "Deprecation Date", "Recommended"}, rows, 2)

	if output != "" {
		if err := writeJSON(output, findings); err != nil {
			return err
		}
		printInfo("Results written to %s", output)
	}
	return nil
}

// collectRuntimeFindings joins deprecated clusters with their upgrade
// recommendations.
func collectRuntimeFindings(deprecated []maintenance.DeprecatedCluster, recommendations map[string]maintenance.Recommendation) []runtimeFinding {
	findings := make([]runtimeFinding, 0, len(deprecated))
	for _, cluster := range deprecated {
		rec, ok := recommendations[cluster.ClusterID]
		if !ok {
			rec = maintenance.Recommendation{RuntimeName: "Unknown"}
		}
		findings = append(findings, runtimeFinding{
			ClusterName:        cluster.ClusterName,
			ClusterID:          cluster.ClusterID,
			CurrentRuntime:     cluster.CurrentRuntime,
			Status:             cluster.Status,
			DeprecationDate:    cluster.DeprecationDate,
			RecommendedRuntime: rec.RuntimeName,
			Rationale:          rec.Rationale,
		})
	}
	return findings
}

// writeJSON writes v to path as indented JSON.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
