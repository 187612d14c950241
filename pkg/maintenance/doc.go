// Package maintenance implements the toolkit's analysis layer on top
// of the Databricks API client: detecting clusters on deprecated
// runtimes, recommending upgrade targets, and flagging outdated or
// vulnerable cluster libraries.
//
// [RuntimeManager] combines the workspace's cluster inventory with the
// runtimes still offered for creation and their published end-of-support
// dates. [LibraryManager] cross-checks installed PyPI libraries against
// a known-safe minimum version table and the newest releases on the
// registry.
//
// Both managers consume narrow interfaces ([ClusterAPI], [LibraryAPI],
// [VersionSource]) so tests can substitute fakes; production code wires
// in *databricks.Client and *pypi.Client.
package maintenance
