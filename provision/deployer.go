package provision

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/objlink/objlink/errors"
)

const ledgerFile = "deploy.db"

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	coordinate  TEXT PRIMARY KEY,
	file        TEXT NOT NULL,
	deployed_at TEXT NOT NULL
)`

// Deployer resolves artifacts onto a classpath staging directory. A
// ledger database in the directory records what has already been
// deployed; a recorded artifact whose file is still present is not
// fetched again.
type Deployer struct {
	dir      string
	settings *Settings
	log      *zap.Logger
	client   *http.Client
	db       *sql.DB
}

// NewDeployer prepares the staging directory and its ledger.
func NewDeployer(dir string, settings *Settings, log *zap.Logger) (*Deployer, error) {
	if settings == nil {
		settings = &Settings{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, ledgerFile))
	if err != nil {
		return nil, fmt.Errorf("open deploy ledger: %w", err)
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init deploy ledger: %w", err)
	}
	return &Deployer{
		dir:      dir,
		settings: settings,
		log:      log,
		client:   &http.Client{Timeout: settings.timeout()},
		db:       db,
	}, nil
}

// Close releases the ledger database.
func (d *Deployer) Close() error {
	return d.db.Close()
}

// Deploy resolves the artifact and returns the staged jar's path.
func (d *Deployer) Deploy(a Artifact) (string, error) {
	coord := a.Coordinate()
	if path, ok := d.recorded(coord); ok {
		d.log.Debug("artifact already deployed",
			zap.String("coordinate", coord), zap.String("file", path))
		return path, nil
	}
	path, err := a.resolve(d)
	if err != nil {
		return "", errors.DeployFailed(coord, err)
	}
	if err := d.record(coord, path); err != nil {
		return "", errors.DeployFailed(coord, err)
	}
	d.log.Info("artifact deployed",
		zap.String("coordinate", coord), zap.String("file", path))
	return path, nil
}

func (d *Deployer) recorded(coord string) (string, bool) {
	var file string
	err := d.db.QueryRow(
		`SELECT file FROM artifacts WHERE coordinate = ?`, coord).Scan(&file)
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(file); err != nil {
		return "", false
	}
	return file, true
}

func (d *Deployer) record(coord, file string) error {
	_, err := d.db.Exec(
		`INSERT INTO artifacts (coordinate, file, deployed_at) VALUES (?, ?, ?)
		 ON CONFLICT(coordinate) DO UPDATE SET
		   file = excluded.file, deployed_at = excluded.deployed_at`,
		coord, file, time.Now().UTC().Format(time.RFC3339))
	return err
}

// stage writes the reader to a uniquely named temp file in the staging
// directory and renames it into place, so a partial download never
// shadows the final name.
func (d *Deployer) stage(r io.Reader, name string) (string, error) {
	tmp := filepath.Join(d.dir, ".staging-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	final := filepath.Join(d.dir, name)
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return final, nil
}

func (a MavenArtifact) resolve(d *Deployer) (string, error) {
	repos, err := d.settings.Repos()
	if err != nil {
		return "", err
	}
	var lastErr error
	for _, repo := range repos {
		url := repo.URL + "/" + a.repoPath()
		resp, err := d.client.Get(url)
		if err != nil {
			lastErr = err
			d.log.Debug("repository fetch failed",
				zap.String("repository", repo.Name), zap.Error(err))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("%s: %s", url, resp.Status)
			continue
		}
		path, err := d.stage(resp.Body, a.jarName())
		resp.Body.Close()
		if err != nil {
			return "", err
		}
		return path, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no repositories configured")
	}
	return "", lastErr
}

func (a LocalJarArtifact) resolve(d *Deployer) (string, error) {
	src, err := os.Open(a.Path)
	if err != nil {
		return "", err
	}
	defer src.Close()
	return d.stage(src, filepath.Base(a.Path))
}
