package maintenance

import (
	"context"
	"errors"
	"testing"

	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/databricks"
)

type fakeLibraryAPI struct {
	statuses []databricks.LibraryStatus
}

func (f *fakeLibraryAPI) LibraryStatuses(_ context.Context, clusterID string) (*databricks.ClusterLibraryStatus, error) {
	return &databricks.ClusterLibraryStatus{ClusterID: clusterID, LibraryStatuses: f.statuses}, nil
}

type fakeVersionSource struct {
	latest map[string]string
	errs   map[string]error
}

func (f *fakeVersionSource) LatestVersion(_ context.Context, pkg string) (string, error) {
	if err, ok := f.errs[pkg]; ok {
		return "", err
	}
	if v, ok := f.latest[pkg]; ok {
		return v, nil
	}
	return "", errors.New("unknown package")
}

func pypiStatus(requirement string) databricks.LibraryStatus {
	return databricks.LibraryStatus{
		Library: databricks.Library{PyPI: &databricks.PyPILibrary{Package: requirement}},
		Status:  "INSTALLED",
	}
}

func TestLibraryManager_CheckLibraries(t *testing.T) {
	api := &fakeLibraryAPI{statuses: []databricks.LibraryStatus{
		pypiStatus("requests==2.20.0"),   // below security minimum 2.27.0
		pypiStatus("numpy==1.23.0"),      // critical package with newer release
		pypiStatus("simplejson==3.17.0"), // ordinary package with newer release
		pypiStatus("attrs==23.2.0"),      // up to date
		pypiStatus("black"),              // unpinned, skipped
		{Library: databricks.Library{Maven: &databricks.MavenLibrary{Coordinates: "org.example:lib:1.0"}}, Status: "INSTALLED"},
	}}
	registry := &fakeVersionSource{latest: map[string]string{
		"numpy":      "1.26.4",
		"simplejson": "3.19.2",
		"attrs":      "23.2.0",
	}}

	m := NewLibraryManager(api, registry, nil)
	issues, err := m.CheckLibraries(context.Background(), "c1")
	if err != nil {
		t.Fatalf("CheckLibraries() failed: %v", err)
	}
	if len(issues) != 3 {
		t.Fatalf("got %d issues, want 3: %+v", len(issues), issues)
	}

	// Sorted by severity: high, medium, low.
	if issues[0].LibraryName != "requests" || issues[0].Severity != "high" {
		t.Errorf("issues[0] = %+v, want requests/high", issues[0])
	}
	if issues[0].RecommendedVersion != "latest" {
		t.Errorf("security issue recommendation = %q, want latest", issues[0].RecommendedVersion)
	}
	if issues[1].LibraryName != "numpy" || issues[1].Severity != "medium" {
		t.Errorf("issues[1] = %+v, want numpy/medium", issues[1])
	}
	if issues[1].RecommendedVersion != "1.26.4" {
		t.Errorf("numpy recommendation = %q, want 1.26.4", issues[1].RecommendedVersion)
	}
	if issues[2].LibraryName != "simplejson" || issues[2].Severity != "low" {
		t.Errorf("issues[2] = %+v, want simplejson/low", issues[2])
	}
}

func TestLibraryManager_SecurityCheckSkipsRegistry(t *testing.T) {
	api := &fakeLibraryAPI{statuses: []databricks.LibraryStatus{
		pypiStatus("urllib3==1.25.0"),
	}}
	// Registry knows nothing; the security verdict must not need it.
	m := NewLibraryManager(api, &fakeVersionSource{}, nil)

	issues, err := m.CheckLibraries(context.Background(), "c1")
	if err != nil {
		t.Fatalf("CheckLibraries() failed: %v", err)
	}
	if len(issues) != 1 || issues[0].Severity != "high" {
		t.Fatalf("got %+v, want one high severity issue", issues)
	}
}

func TestLibraryManager_LookupFailureSkipped(t *testing.T) {
	api := &fakeLibraryAPI{statuses: []databricks.LibraryStatus{
		pypiStatus("leftpad==1.0.0"),
		pypiStatus("simplejson==3.17.0"),
	}}
	registry := &fakeVersionSource{
		latest: map[string]string{"simplejson": "3.19.2"},
		errs:   map[string]error{"leftpad": errors.New("registry down")},
	}

	m := NewLibraryManager(api, registry, nil)
	issues, err := m.CheckLibraries(context.Background(), "c1")
	if err != nil {
		t.Fatalf("CheckLibraries() failed: %v", err)
	}
	if len(issues) != 1 || issues[0].LibraryName != "simplejson" {
		t.Fatalf("got %+v, want only the simplejson issue", issues)
	}
}

func TestLibraryManager_ContextCancellationPropagates(t *testing.T) {
	api := &fakeLibraryAPI{statuses: []databricks.LibraryStatus{
		pypiStatus("simplejson==3.17.0"),
	}}
	registry := &fakeVersionSource{errs: map[string]error{"simplejson": context.Canceled}}

	m := NewLibraryManager(api, registry, nil)
	if _, err := m.CheckLibraries(context.Background(), "c1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("got err %v, want context.Canceled", err)
	}
}

func TestLibraryManager_VersionFromRepoField(t *testing.T) {
	api := &fakeLibraryAPI{statuses: []databricks.LibraryStatus{
		{Library: databricks.Library{PyPI: &databricks.PyPILibrary{
			Package: "Requests",
			Repo:    "requests==2.20.0",
		}}, Status: "INSTALLED"},
	}}

	m := NewLibraryManager(api, &fakeVersionSource{}, nil)
	issues, err := m.CheckLibraries(context.Background(), "c1")
	if err != nil {
		t.Fatalf("CheckLibraries() failed: %v", err)
	}
	if len(issues) != 1 || issues[0].LibraryName != "requests" || issues[0].CurrentVersion != "2.20.0" {
		t.Fatalf("got %+v, want requests 2.20.0 flagged", issues)
	}
}

func TestSplitRequirement(t *testing.T) {
	tests := []struct {
		req     string
		name    string
		version string
	}{
		{"requests==2.27.0", "requests", "2.27.0"},
		{"numpy == 1.22.0", "numpy", "1.22.0"},
		{"black", "black", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, version := splitRequirement(tt.req)
		if name != tt.name || version != tt.version {
			t.Errorf("splitRequirement(%q) = (%q, %q), want (%q, %q)", tt.req, name, version, tt.name, tt.version)
		}
	}
}
