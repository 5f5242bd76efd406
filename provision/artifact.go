package provision

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Artifact describes something deployable onto the classpath staging
// directory. Implementations are the coordinate forms this package knows
// how to resolve.
type Artifact interface {
	// Coordinate is the artifact's stable identity, used as the ledger key.
	Coordinate() string

	resolve(d *Deployer) (string, error)
}

// MavenArtifact identifies a jar in a maven-layout repository.
type MavenArtifact struct {
	Group   string
	ID      string
	Version string
}

// ParseMaven parses a "group:artifact:version" coordinate.
func ParseMaven(coord string) (MavenArtifact, error) {
	parts := strings.Split(coord, ":")
	if len(parts) != 3 {
		return MavenArtifact{}, fmt.Errorf("coordinate %q is not group:artifact:version", coord)
	}
	for _, p := range parts {
		if p == "" {
			return MavenArtifact{}, fmt.Errorf("coordinate %q has an empty segment", coord)
		}
	}
	return MavenArtifact{Group: parts[0], ID: parts[1], Version: parts[2]}, nil
}

func (a MavenArtifact) Coordinate() string {
	return a.Group + ":" + a.ID + ":" + a.Version
}

// jarName is the conventional maven artifact file name.
func (a MavenArtifact) jarName() string {
	return a.ID + "-" + a.Version + ".jar"
}

// repoPath is the artifact's path below a maven-layout repository root.
func (a MavenArtifact) repoPath() string {
	group := strings.ReplaceAll(a.Group, ".", "/")
	return group + "/" + a.ID + "/" + a.Version + "/" + a.jarName()
}

// LocalJarArtifact identifies a jar already on the local filesystem.
type LocalJarArtifact struct {
	Path string
}

func (a LocalJarArtifact) Coordinate() string {
	abs, err := filepath.Abs(a.Path)
	if err != nil {
		return a.Path
	}
	return abs
}
