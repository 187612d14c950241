package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/cache"
	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/databricks"
)

// ClusterAPI is the slice of the Databricks client the runtime manager
// needs. *databricks.Client satisfies it.
type ClusterAPI interface {
	ListClusters(ctx context.Context) ([]databricks.Cluster, error)
	SparkVersions(ctx context.Context) (*databricks.SparkVersionList, error)
}

// Runtime deprecation status values.
const (
	StatusDeprecated     = "DEPRECATED"
	StatusSoonDeprecated = "SOON_DEPRECATED"
)

// RuntimeVersion is a runtime available for cluster creation, with the
// numeric version extracted from its display name.
type RuntimeVersion struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Version string `json:"version"` // major.minor, e.g. "13.3"
	LTS     bool   `json:"is_lts"`
}

// DeprecationInfo describes when a runtime version reaches end of
// support and where that date came from.
type DeprecationInfo struct {
	Version         string `json:"version"`
	DeprecationDate string `json:"deprecation_date"` // YYYY-MM-DD
	Source          string `json:"source"`
	Note            string `json:"note"`
}

// DeprecatedCluster is a cluster running a runtime that is past or
// approaching end of support.
type DeprecatedCluster struct {
	ClusterID       string `json:"cluster_id"`
	ClusterName     string `json:"cluster_name"`
	CurrentRuntime  string `json:"current_runtime"`
	Status          string `json:"status"` // StatusDeprecated or StatusSoonDeprecated
	DeprecationDate string `json:"deprecation_date"`
	Note            string `json:"note,omitempty"`
	Source          string `json:"source,omitempty"`
}

// Recommendation is an upgrade target for a cluster on a deprecated
// runtime, with the reasoning behind the choice.
type Recommendation struct {
	RuntimeKey  string `json:"runtime_key"`
	RuntimeName string `json:"runtime_name"`
	Rationale   string `json:"rationale"`
}

var versionPattern = regexp.MustCompile(`(\d+\.\d+)(\.x)?`)

// knownEOLDates are end-of-support dates published in the Databricks
// runtime release notes, keyed by major.minor version.
var knownEOLDates = map[string]DeprecationInfo{
	"7.3":  {Version: "7.3", DeprecationDate: "2022-12-31", Source: "release-notes", Note: "DBR 7.3 LTS end of support date: December 31, 2022"},
	"8.4":  {Version: "8.4", DeprecationDate: "2023-09-30", Source: "release-notes", Note: "DBR 8.4 LTS end of support date: September 30, 2023"},
	"9.1":  {Version: "9.1", DeprecationDate: "2024-12-19", Source: "release-notes", Note: "DBR 9.1 LTS end of support date: December 19, 2024"},
	"10.4": {Version: "10.4", DeprecationDate: "2025-06-30", Source: "release-notes", Note: "DBR 10.4 LTS end of support date: June 30, 2025"},
	"11.3": {Version: "11.3", DeprecationDate: "2025-12-31", Source: "release-notes", Note: "DBR 11.3 LTS end of support date: December 31, 2025"},
}

// Cache keys used by the runtime manager.
const (
	cacheKeyRuntimeVersions  = "runtime_versions"
	cacheKeyDeprecationDates = "deprecation_dates"
)

// RuntimeManager evaluates cluster runtime versions against the set of
// runtimes still offered for creation and their end-of-support dates,
// and recommends upgrade targets.
type RuntimeManager struct {
	api    ClusterAPI
	store  cache.Store
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time
}

// NewRuntimeManager creates a runtime manager. store may be nil to
// disable caching of derived data; logger may be nil to disable logs.
func NewRuntimeManager(api ClusterAPI, store cache.Store, ttl time.Duration, logger *log.Logger) *RuntimeManager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &RuntimeManager{api: api, store: store, ttl: ttl, logger: logger, now: time.Now}
}

// AvailableRuntimeVersions returns the runtimes offered for cluster
// creation, sorted ascending by numeric version. Entries whose name
// carries no parseable version are skipped. Cached under
// "runtime_versions".
func (m *RuntimeManager) AvailableRuntimeVersions(ctx context.Context) ([]RuntimeVersion, error) {
	var versions []RuntimeVersion
	if m.cacheGet(ctx, cacheKeyRuntimeVersions, &versions) {
		return versions, nil
	}

	resp, err := m.api.SparkVersions(ctx)
	if err != nil {
		return nil, err
	}

	for _, v := range resp.Versions {
		match := versionPattern.FindStringSubmatch(v.Name)
		if match == nil {
			continue
		}
		versions = append(versions, RuntimeVersion{
			Key:     v.Key,
			Name:    v.Name,
			Version: match[1],
			LTS:     strings.Contains(v.Name, "LTS"),
		})
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return compareVersions(versions[i].Version, versions[j].Version) < 0
	})

	m.cacheSet(ctx, cacheKeyRuntimeVersions, versions)
	return versions, nil
}

// DeprecationDates returns end-of-support information keyed by
// major.minor version: the published dates, plus inferred entries for
// old versions that are no longer offered for cluster creation.
// Cached under "deprecation_dates".
func (m *RuntimeManager) DeprecationDates(ctx context.Context) (map[string]DeprecationInfo, error) {
	dates := map[string]DeprecationInfo{}
	if m.cacheGet(ctx, cacheKeyDeprecationDates, &dates) {
		return dates, nil
	}

	for v, info := range knownEOLDates {
		dates[v] = info
	}

	available, err := m.AvailableRuntimeVersions(ctx)
	if err != nil {
		return nil, err
	}
	offered := map[string]bool{}
	for _, v := range available {
		offered[v.Version] = true
	}

	// Versions older than 9.1 that are no longer offered are treated
	// as deprecated even without a published date.
	today := m.now().Format("2006-01-02")
	for major := 1; major <= 12; major++ {
		for minor := 0; minor <= 14; minor++ {
			version := fmt.Sprintf("%d.%d", major, minor)
			if _, known := dates[version]; known || offered[version] {
				continue
			}
			if compareVersions(version, "9.1") < 0 {
				dates[version] = DeprecationInfo{
					Version:         version,
					DeprecationDate: today,
					Source:          "inference",
					Note:            "Inferred deprecation (version not available for creation)",
				}
			}
		}
	}

	m.logger.Info("resolved runtime deprecation dates", "count", len(dates))
	m.cacheSet(ctx, cacheKeyDeprecationDates, dates)
	return dates, nil
}

// DeprecatedClusters returns clusters whose runtime is past end of
// support (DEPRECATED) or will be before threshold (SOON_DEPRECATED).
// A runtime with no published date that is no longer offered for
// creation also counts as deprecated.
func (m *RuntimeManager) DeprecatedClusters(ctx context.Context, threshold time.Time) ([]DeprecatedCluster, error) {
	dates, err := m.DeprecationDates(ctx)
	if err != nil {
		return nil, err
	}
	available, err := m.AvailableRuntimeVersions(ctx)
	if err != nil {
		return nil, err
	}
	offered := map[string]bool{}
	for _, v := range available {
		offered[v.Version] = true
	}

	clusters, err := m.api.ListClusters(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	var atRisk []DeprecatedCluster
	for _, cluster := range clusters {
		match := versionPattern.FindStringSubmatch(cluster.SparkVersion)
		if match == nil {
			continue
		}
		version := match[1]

		info, known := dates[version]
		if !known {
			if !offered[version] {
				atRisk = append(atRisk, DeprecatedCluster{
					ClusterID:       cluster.ClusterID,
					ClusterName:     cluster.ClusterName,
					CurrentRuntime:  cluster.SparkVersion,
					Status:          StatusDeprecated,
					DeprecationDate: "Unknown",
					Note:            "This runtime is no longer available for new cluster creation",
					Source:          "availability_check",
				})
			}
			continue
		}

		eol, err := time.Parse("2006-01-02", info.DeprecationDate)
		if err != nil {
			m.logger.Warn("invalid deprecation date", "version", version, "date", info.DeprecationDate)
			continue
		}

		var status, note string
		switch {
		case !eol.After(now):
			status = StatusDeprecated
			note = info.Note
		case !eol.After(threshold):
			status = StatusSoonDeprecated
			note = fmt.Sprintf("This runtime will be deprecated in %d days.", int(eol.Sub(now).Hours()/24))
		default:
			continue
		}

		atRisk = append(atRisk, DeprecatedCluster{
			ClusterID:       cluster.ClusterID,
			ClusterName:     cluster.ClusterName,
			CurrentRuntime:  cluster.SparkVersion,
			Status:          status,
			DeprecationDate: info.DeprecationDate,
			Note:            note,
			Source:          info.Source,
		})
	}
	return atRisk, nil
}

// CurrentLTSRuntimes returns the Long Term Support runtimes, newest
// first.
func (m *RuntimeManager) CurrentLTSRuntimes(ctx context.Context) ([]RuntimeVersion, error) {
	all, err := m.AvailableRuntimeVersions(ctx)
	if err != nil {
		return nil, err
	}
	var lts []RuntimeVersion
	for _, rt := range all {
		if rt.LTS {
			lts = append(lts, rt)
		}
	}
	sort.SliceStable(lts, func(i, j int) bool {
		return compareVersions(lts[i].Version, lts[j].Version) > 0
	})
	return lts, nil
}

// RecommendUpgrades picks an upgrade target for each cluster, keyed by
// cluster ID. Production clusters (name contains prod/prd/live) get the
// newest LTS runtime of the matching flavor; development clusters get
// the newest runtime of the matching flavor. Flavor (ML, Genomics,
// Photon) is detected from the current runtime string.
func (m *RuntimeManager) RecommendUpgrades(ctx context.Context, clusters []DeprecatedCluster) (map[string]Recommendation, error) {
	all, err := m.AvailableRuntimeVersions(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return map[string]Recommendation{}, nil
	}

	latest := func(filter func(RuntimeVersion) bool) *RuntimeVersion {
		for i := len(all) - 1; i >= 0; i-- {
			if filter(all[i]) {
				return &all[i]
			}
		}
		return nil
	}

	isML := func(rt RuntimeVersion) bool { return strings.Contains(rt.Name, "ML") }
	isGenomics := func(rt RuntimeVersion) bool { return strings.Contains(rt.Name, "Genomics") }
	isPhoton := func(rt RuntimeVersion) bool { return strings.Contains(rt.Name, "Photon") }
	isStandard := func(rt RuntimeVersion) bool { return !isML(rt) && !isGenomics(rt) && !isPhoton(rt) }

	latestRegular := latest(isStandard)
	if latestRegular == nil {
		latestRegular = &all[len(all)-1]
	}
	latestLTS := latest(func(rt RuntimeVersion) bool { return isStandard(rt) && rt.LTS })
	latestML := latest(isML)
	latestMLLTS := latest(func(rt RuntimeVersion) bool { return isML(rt) && rt.LTS })
	if latestMLLTS == nil {
		latestMLLTS = latestML
	}
	latestGenomics := latest(isGenomics)
	latestPhoton := latest(isPhoton)

	recommendations := make(map[string]Recommendation, len(clusters))
	for _, cluster := range clusters {
		runtime := strings.ToLower(cluster.CurrentRuntime)
		name := strings.ToLower(cluster.ClusterName)
		production := strings.Contains(name, "prod") || strings.Contains(name, "prd") || strings.Contains(name, "live")

		var rec Recommendation
		switch {
		case production && strings.Contains(runtime, "ml") && latestMLLTS != nil:
			rec = Recommendation{latestMLLTS.Key, latestMLLTS.Name, "Latest ML LTS runtime recommended for production ML workloads"}
		case production && strings.Contains(runtime, "genomics") && latestGenomics != nil:
			rec = Recommendation{latestGenomics.Key, latestGenomics.Name, "Latest Genomics runtime recommended for production genomics workloads"}
		case production && strings.Contains(runtime, "photon") && latestPhoton != nil:
			rec = Recommendation{latestPhoton.Key, latestPhoton.Name, "Latest Photon runtime recommended for production SQL workloads"}
		case production && latestLTS != nil:
			rec = Recommendation{latestLTS.Key, latestLTS.Name, "Latest LTS runtime recommended for stable production workloads"}
		case production:
			rec = Recommendation{latestRegular.Key, latestRegular.Name, "Latest runtime recommended (no LTS version available)"}
		case strings.Contains(runtime, "ml") && latestML != nil:
			rec = Recommendation{latestML.Key, latestML.Name, "Latest ML runtime recommended for ML development workloads"}
		case strings.Contains(runtime, "genomics") && latestGenomics != nil:
			rec = Recommendation{latestGenomics.Key, latestGenomics.Name, "Latest Genomics runtime recommended for genomics development"}
		case strings.Contains(runtime, "photon") && latestPhoton != nil:
			rec = Recommendation{latestPhoton.Key, latestPhoton.Name, "Latest Photon runtime recommended for SQL development"}
		default:
			rec = Recommendation{latestRegular.Key, latestRegular.Name, "Latest runtime recommended for development workloads"}
		}
		recommendations[cluster.ClusterID] = rec
	}
	return recommendations, nil
}

func (m *RuntimeManager) cacheGet(ctx context.Context, key string, v any) bool {
	if m.store == nil {
		return false
	}
	data, ok, _ := m.store.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (m *RuntimeManager) cacheSet(ctx context.Context, key string, v any) {
	if m.store == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = m.store.Set(ctx, key, data, m.ttl)
	}
}
