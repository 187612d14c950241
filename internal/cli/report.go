package cli

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/maintenance"
)

// maxReportLibraryClusters bounds how many clusters get a library scan
// in the report; library checks fan out to PyPI per cluster.
const maxReportLibraryClusters = 5

// reportData is the template input for the HTML maintenance report.
type reportData struct {
	RunID        string
	GeneratedAt  string
	WorkspaceURL string
	Runtime      []runtimeFinding
	Libraries    []clusterLibraryReport
}

// clusterLibraryReport is the library section for one cluster.
type clusterLibraryReport struct {
	ClusterName string
	Issues      []maintenance.LibraryIssue
}

// reportCommand creates the report command.
func (c *CLI) reportCommand() *cobra.Command {
	var (
		workspace string
		months    int
		output    string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an HTML maintenance report",
		Long: `Generate an HTML maintenance report.

The report combines the runtime deprecation findings with a library
scan of the workspace's clusters into a single HTML document.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReport(cmd.Context(), workspace, months, output)
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace name from config")
	cmd.Flags().IntVarP(&months, "months", "m", 3, "soon-to-be-deprecated threshold in months")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (HTML)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (c *CLI) runReport(ctx context.Context, workspace string, months int, output string) error {
	tk, err := c.newToolkit(workspace)
	if err != nil {
		return err
	}
	defer tk.Close()

	prog := newProgress(c.Logger)
	data, err := c.buildReport(ctx, tk, months)
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	defer f.Close()

	if err := renderReport(f, data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	prog.done("Generated maintenance report")
	printSuccess("Report generated at %s", output)
	printDetail("Run ID: %s", data.RunID)
	return nil
}

// buildReport gathers the runtime and library findings for the report.
func (c *CLI) buildReport(ctx context.Context, tk *toolkit, months int) (*reportData, error) {
	threshold := time.Now().AddDate(0, 0, 30*months)

	deprecated, err := tk.runtime.DeprecatedClusters(ctx, threshold)
	if err != nil {
		return nil, fmt.Errorf("check runtimes: %w", err)
	}
	recommendations, err := tk.runtime.RecommendUpgrades(ctx, deprecated)
	if err != nil {
		return nil, fmt.Errorf("recommend upgrades: %w", err)
	}

	clusters, err := tk.client.ListClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	if len(clusters) > maxReportLibraryClusters {
		clusters = clusters[:maxReportLibraryClusters]
	}

	libraries := make([]clusterLibraryReport, 0, len(clusters))
	for _, cluster := range clusters {
		issues, err := tk.library.CheckLibraries(ctx, cluster.ClusterID)
		if err != nil {
			c.Logger.Warn("library check failed", "cluster", cluster.ClusterID, "err", err)
			continue
		}
		libraries = append(libraries, clusterLibraryReport{
			ClusterName: cluster.ClusterName,
			Issues:      issues,
		})
	}

	return &reportData{
		RunID:        uuid.NewString(),
		GeneratedAt:  time.Now().Format("2006-01-02 15:04:05"),
		WorkspaceURL: tk.client.WorkspaceURL(),
		Runtime:      collectRuntimeFindings(deprecated, recommendations),
		Libraries:    libraries,
	}, nil
}

// renderReport writes the HTML report for data to w.
func renderReport(w io.Writer, data *reportData) error {
	return reportTemplate.Execute(w, data)
}

var reportTemplate = template.Must(template.New("report").Parse(`<html>
<head>
    <title>Databricks Maintenance Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        h1, h2, h3 { color: #0077b6; }
        table { border-collapse: collapse; width: 100%; margin-bottom: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        tr:nth-child(even) { background-color: #f9f9f9; }
        .high { background-color: #ffcccc; }
        .medium { background-color: #fff2cc; }
        .low { background-color: #e6f3ff; }
        .DEPRECATED { background-color: #ffcccc; }
        .SOON_DEPRECATED { background-color: #fff2cc; }
    </style>
</head>
<body>
    <h1>Databricks Maintenance Report</h1>
    <p>Workspace: {{.WorkspaceURL}}</p>
    <p>Generated on {{.GeneratedAt}} (run {{.RunID}})</p>

    <h2>Runtime Version Status</h2>
    <p>Found {{len .Runtime}} clusters with deprecated or soon-to-be deprecated runtimes.</p>
    <table>
        <tr>
            <th>Cluster Name</th>
            <th>Current Runtime</th>
            <th>Status</th>
            <th>Deprecation Date</th>
            <th>Recommended Runtime</th>
            <th>Rationale</th>
        </tr>
{{- range .Runtime}}
        <tr class="{{.Status}}">
            <td>{{.ClusterName}}</td>
            <td>{{.CurrentRuntime}}</td>
            <td>{{.Status}}</td>
            <td>{{.DeprecationDate}}</td>
            <td>{{.RecommendedRuntime}}</td>
            <td>{{.Rationale}}</td>
        </tr>
{{- end}}
    </table>

    <h2>Library Status</h2>
{{- range .Libraries}}
    <h3>Cluster: {{.ClusterName}}</h3>
    <p>Found {{len .Issues}} libraries that need attention.</p>
{{- if .Issues}}
    <table>
        <tr>
            <th>Library</th>
            <th>Current Version</th>
            <th>Recommended Version</th>
            <th>Reason</th>
            <th>Severity</th>
        </tr>
{{- range .Issues}}
        <tr class="{{.Severity}}">
            <td>{{.LibraryName}}</td>
            <td>{{.CurrentVersion}}</td>
            <td>{{.RecommendedVersion}}</td>
            <td>{{.Reason}}</td>
            <td>{{.Severity}}</td>
        </tr>
{{- end}}
    </table>
{{- end}}
{{- end}}
</body>
</html>
`))
