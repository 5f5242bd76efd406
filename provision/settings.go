package provision

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAssetsDir is the classpath staging directory used when neither
// the builder nor the settings name one.
const DefaultAssetsDir = "assets"

const defaultTimeout = 30 * time.Second

// mavenCentral is the repository consulted when the settings list none.
const mavenCentral = "central::https://repo1.maven.org/maven2"

// Settings configures artifact resolution. The YAML form mirrors the
// struct:
//
//	repositories:
//	  - central::https://repo1.maven.org/maven2
//	assets_dir: assets
//	timeout_seconds: 30
type Settings struct {
	// Repositories are consulted in order, each entry "name::url".
	Repositories []string `yaml:"repositories"`
	AssetsDir    string   `yaml:"assets_dir"`
	TimeoutSecs  int      `yaml:"timeout_seconds"`
}

// Repo is one parsed repository entry.
type Repo struct {
	Name string
	URL  string
}

// LoadSettings reads settings from a YAML file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if _, err := s.Repos(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Repos parses the repository list, falling back to maven central when
// the list is empty.
func (s *Settings) Repos() ([]Repo, error) {
	entries := s.Repositories
	if len(entries) == 0 {
		entries = []string{mavenCentral}
	}
	repos := make([]Repo, 0, len(entries))
	for _, e := range entries {
		name, url, ok := strings.Cut(e, "::")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("repository entry %q is not name::url", e)
		}
		repos = append(repos, Repo{Name: name, URL: strings.TrimRight(url, "/")})
	}
	return repos, nil
}

func (s *Settings) timeout() time.Duration {
	if s.TimeoutSecs > 0 {
		return time.Duration(s.TimeoutSecs) * time.Second
	}
	return defaultTimeout
}
