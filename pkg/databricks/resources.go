package databricks

import (
	"context"
	"net/url"
)

// ListClusters returns all clusters in the workspace.
//
// The result is served read-through from the cache under the
// "clusters_list" key: within the TTL window repeated calls issue no
// network requests. Only the clusters field of the response is kept; a
// response without it yields an empty slice.
func (c *Client) ListClusters(ctx context.Context) ([]Cluster, error) {
	clusters := []Cluster{}
	err := c.cached(ctx, cacheKeyClusters, &clusters, func() error {
		var resp struct {
			Clusters []Cluster `json:"clusters"`
		}
		if err := c.do(ctx, "GET", "2.0/clusters/list", nil, "failed to retrieve clusters", &resp); err != nil {
			return err
		}
		clusters = resp.Clusters
		if clusters == nil {
			clusters = []Cluster{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clusters, nil
}

// LibraryStatuses returns the install status of every library on the
// given cluster. Library state changes while installs are in flight,
// so this endpoint is always queried live and never cached.
func (c *Client) LibraryStatuses(ctx context.Context, clusterID string) (*ClusterLibraryStatus, error) {
	var status ClusterLibraryStatus
	endpoint := "2.0/libraries/cluster-status?cluster_id=" + url.QueryEscape(clusterID)
	err := c.do(ctx, "GET", endpoint, nil, "failed to retrieve libraries for cluster "+clusterID, &status)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// SparkVersions returns the runtime versions available for cluster
// creation, served read-through from the cache under the
// "spark_versions" key. The full response is cached.
func (c *Client) SparkVersions(ctx context.Context) (*SparkVersionList, error) {
	var versions SparkVersionList
	err := c.cached(ctx, cacheKeySparkVersions, &versions, func() error {
		return c.do(ctx, "GET", "2.0/clusters/spark-versions", nil, "failed to retrieve runtime versions", &versions)
	})
	if err != nil {
		return nil, err
	}
	return &versions, nil
}
