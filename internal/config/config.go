package config

import "path/filepath"

const (
	// RepoDirName is the reserved metadata directory at the base of a
	// working tree. Its presence marks the repository root.
	RepoDirName = "REPO"

	// DataDirName mirrors the working tree's directory structure under
	// RepoDirName and holds the per-file artifacts.
	DataDirName = "DATA"

	MetadataFile = "metadatadir.txt"
	CommitsFile  = "commits.txt"
	LockFile     = "LOCK"
)

// Artifact name prefixes. Live artifacts hold a path's current content,
// historical artifacts are superseded snapshots or deltas, delete markers
// record a removal. Backup artifacts undo a partially-applied commit.
const (
	PrefixLiveText   = "ET"
	PrefixLiveBinary = "EB"
	PrefixHistText   = "HT"
	PrefixHistBinary = "HB"
	PrefixDelete     = "D"
	PrefixBackup     = "BAK"
)

// RepoConfig resolves all paths of one repository from its base directory.
type RepoConfig struct {
	BaseDir string
}

func NewRepoConfig(baseDir string) *RepoConfig {
	return &RepoConfig{BaseDir: baseDir}
}

// RepoDir returns the metadata directory (<base>/REPO).
func (c *RepoConfig) RepoDir() string {
	return filepath.Join(c.BaseDir, RepoDirName)
}

// DataDir returns the artifact store root (<base>/REPO/DATA).
func (c *RepoConfig) DataDir() string {
	return filepath.Join(c.RepoDir(), DataDirName)
}

func (c *RepoConfig) MetadataPath() string {
	return filepath.Join(c.RepoDir(), MetadataFile)
}

func (c *RepoConfig) CommitsPath() string {
	return filepath.Join(c.RepoDir(), CommitsFile)
}

func (c *RepoConfig) LockPath() string {
	return filepath.Join(c.RepoDir(), LockFile)
}
