package maintenance

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/databricks"
	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/registry/pypi"
)

// LibraryAPI is the slice of the Databricks client the library manager
// needs. *databricks.Client satisfies it.
type LibraryAPI interface {
	LibraryStatuses(ctx context.Context, clusterID string) (*databricks.ClusterLibraryStatus, error)
}

// VersionSource looks up the newest released version of a package.
// *pypi.Client satisfies it.
type VersionSource interface {
	LatestVersion(ctx context.Context, pkg string) (string, error)
}

// LibraryIssue describes one library on a cluster that needs attention.
type LibraryIssue struct {
	LibraryName        string `json:"library_name"`
	Type               string `json:"type"` // "pypi"
	CurrentVersion     string `json:"current_version"`
	RecommendedVersion string `json:"recommended_version"`
	Reason             string `json:"reason"`
	Severity           string `json:"severity"` // high, medium, low
}

// securityCriticalMinimums maps packages with known vulnerabilities in
// older releases to the first safe version. Installations below the
// minimum are flagged high severity.
var securityCriticalMinimums = map[string]string{
	"numpy":        "1.22.0",
	"pandas":       "1.3.0",
	"requests":     "2.27.0",
	"cryptography": "36.0.0",
	"pillow":       "9.0.0",
	"tensorflow":   "2.8.0",
	"torch":        "1.10.0",
	"sqlalchemy":   "1.4.0",
	"urllib3":      "1.26.5",
	"pyjwt":        "2.0.0",
}

var severityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

// maxConcurrentChecks bounds the fan-out of registry lookups per cluster.
const maxConcurrentChecks = 10

// LibraryManager inspects the libraries installed on clusters for
// outdated or vulnerable versions.
type LibraryManager struct {
	api      LibraryAPI
	registry VersionSource
	logger   *log.Logger
}

// NewLibraryManager creates a library manager. logger may be nil to
// disable logs.
func NewLibraryManager(api LibraryAPI, registry VersionSource, logger *log.Logger) *LibraryManager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &LibraryManager{api: api, registry: registry, logger: logger}
}

// InstalledLibraries returns the install status entries for a cluster.
func (m *LibraryManager) InstalledLibraries(ctx context.Context, clusterID string) ([]databricks.LibraryStatus, error) {
	status, err := m.api.LibraryStatuses(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	return status.LibraryStatuses, nil
}

// CheckLibraries returns the libraries on a cluster that are below a
// known-safe version or have a newer release available, sorted by
// severity (high first). Registry lookups run concurrently, at most
// maxConcurrentChecks at a time. Lookup failures for individual
// packages are logged and skipped, not surfaced.
func (m *LibraryManager) CheckLibraries(ctx context.Context, clusterID string) ([]LibraryIssue, error) {
	installed, err := m.InstalledLibraries(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	results := make([]*LibraryIssue, len(installed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)

	for i, status := range installed {
		g.Go(func() error {
			issue, err := m.checkOne(gctx, status)
			if err != nil {
				return err
			}
			results[i] = issue
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	issues := make([]LibraryIssue, 0, len(results))
	for _, issue := range results {
		if issue != nil {
			issues = append(issues, *issue)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return severityRank[issues[i].Severity] < severityRank[issues[j].Severity]
	})
	return issues, nil
}

// checkOne inspects a single library status entry. Only PyPI libraries
// are checked; Maven, CRAN, jar, and wheel installs are skipped.
func (m *LibraryManager) checkOne(ctx context.Context, status databricks.LibraryStatus) (*LibraryIssue, error) {
	lib := status.Library.PyPI
	if lib == nil {
		return nil, nil
	}

	name, version := splitRequirement(lib.Package)
	if version == "" && strings.Contains(lib.Repo, "==") {
		_, version = splitRequirement(lib.Repo)
	}
	if name == "" || version == "" {
		return nil, nil
	}
	name = pypi.NormalizeName(name)

	if minimum, critical := securityCriticalMinimums[name]; critical {
		if compareVersions(version, minimum) < 0 {
			return &LibraryIssue{
				LibraryName:        name,
				Type:               "pypi",
				CurrentVersion:     version,
				RecommendedVersion: "latest",
				Reason:             "Security vulnerabilities in versions before " + minimum,
				Severity:           "high",
			}, nil
		}
	}

	latest, err := m.registry.LatestVersion(ctx, name)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		m.logger.Warn("registry lookup failed", "package", name, "err", err)
		return nil, nil
	}

	if compareVersions(latest, version) > 0 {
		severity := "low"
		if _, critical := securityCriticalMinimums[name]; critical {
			severity = "medium"
		}
		return &LibraryIssue{
			LibraryName:        name,
			Type:               "pypi",
			CurrentVersion:     version,
			RecommendedVersion: latest,
			Reason:             "Newer version available",
			Severity:           severity,
		}, nil
	}
	return nil, nil
}

// splitRequirement splits a pinned requirement string ("name==1.2.3")
// into name and version. The version is empty when the string carries
// no pin.
func splitRequirement(req string) (name, version string) {
	name, version, found := strings.Cut(req, "==")
	name = strings.TrimSpace(name)
	if !found {
		return name, ""
	}
	return name, strings.TrimSpace(version)
}
