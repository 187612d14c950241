package databricks

// Cluster describes a compute cluster in the workspace, as returned by
// the clusters/list endpoint. Only the fields the maintenance toolkit
// acts on are decoded; the API returns many more.
type Cluster struct {
	ClusterID    string `json:"cluster_id"`
	ClusterName  string `json:"cluster_name"`
	SparkVersion string `json:"spark_version"`
	State        string `json:"state,omitempty"`
}

// SparkVersion is a runtime version available for cluster creation.
// Key is the identifier used when creating clusters (e.g.
// "13.3.x-scala2.12"); Name is the human-readable form (e.g.
// "13.3 LTS (includes Apache Spark 3.4.1, Scala 2.12)").
type SparkVersion struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// SparkVersionList is the full response of the spark-versions endpoint.
type SparkVersionList struct {
	Versions []SparkVersion `json:"versions"`
}

// PyPILibrary identifies a Python package installed from PyPI.
// Package carries the requirement string (e.g. "requests==2.27.0").
type PyPILibrary struct {
	Package string `json:"package"`
	Repo    string `json:"repo,omitempty"`
}

// MavenLibrary identifies a JVM library installed from Maven.
type MavenLibrary struct {
	Coordinates string `json:"coordinates"`
}

// Library is one installed library; exactly one of the source fields
// is set.
type Library struct {
	PyPI  *PyPILibrary  `json:"pypi,omitempty"`
	Maven *MavenLibrary `json:"maven,omitempty"`
	Jar   string        `json:"jar,omitempty"`
	Whl   string        `json:"whl,omitempty"`
}

// LibraryStatus is the install state of one library on a cluster.
type LibraryStatus struct {
	Library  Library  `json:"library"`
	Status   string   `json:"status"`
	Messages []string `json:"messages,omitempty"`
}

// ClusterLibraryStatus is the response of the libraries/cluster-status
// endpoint.
type ClusterLibraryStatus struct {
	ClusterID       string          `json:"cluster_id"`
	LibraryStatuses []LibraryStatus `json:"library_statuses"`
}
