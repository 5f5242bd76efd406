// Package provision stages jar artifacts onto the runtime's classpath
// directory.
//
// Artifacts come in two coordinate forms: MavenArtifact, fetched from a
// maven-layout repository over HTTP, and LocalJarArtifact, copied from
// the local filesystem. Repositories, the staging directory, and the
// fetch timeout are configured through Settings, loadable from YAML.
//
// A sqlite ledger in the staging directory records deployed artifacts so
// repeated deployments of the same coordinate are served from disk.
package provision
