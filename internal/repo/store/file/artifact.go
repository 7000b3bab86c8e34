package file

import (
	"fmt"
	"regexp"
	"strconv"

	"vercon/internal/config"
)

// artifactPattern parses artifact file names in the data store.
var artifactPattern = regexp.MustCompile(`^(ET|EB|HT|HB|D)(\d+)- (.+)$`)

// backupPattern parses pre-mutation backup artifact names.
var backupPattern = regexp.MustCompile(`^BAK(\d+)- (.+)$`)

// Locator builds the artifact file name for a prefix, revision and file name.
func Locator(prefix string, revision int, name string) string {
	return fmt.Sprintf("%s%d- %s", prefix, revision, name)
}

// BackupLocator builds the backup artifact name for a commit revision.
func BackupLocator(revision int, name string) string {
	return fmt.Sprintf("%s%d- %s", config.PrefixBackup, revision, name)
}

// ParseArtifact decodes an artifact file name into the event it records.
func ParseArtifact(name string) (kind EventKind, content ContentKind, revision int, fileName string, ok bool) {
	m := artifactPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, 0, "", false
	}
	revision, err := strconv.Atoi(m[2])
	if err != nil || revision < 1 {
		return 0, 0, 0, "", false
	}
	switch m[1] {
	case config.PrefixLiveText:
		kind, content = Live, Text
	case config.PrefixLiveBinary:
		kind, content = Live, Binary
	case config.PrefixHistText:
		kind, content = Historical, Text
	case config.PrefixHistBinary:
		kind, content = Historical, Binary
	case config.PrefixDelete:
		// delete markers always record kind binary in the on-disk format
		kind, content = Deleted, Binary
	}
	return kind, content, revision, m[3], true
}

// ParseBackup decodes a backup artifact name into its commit revision and
// the name of the artifact it shadows.
func ParseBackup(name string) (revision int, target string, ok bool) {
	m := backupPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", false
	}
	revision, err := strconv.Atoi(m[1])
	if err != nil || revision < 1 {
		return 0, "", false
	}
	return revision, m[2], true
}

// livePrefix returns the live artifact prefix for a content kind.
func livePrefix(k ContentKind) string {
	if k == Text {
		return config.PrefixLiveText
	}
	return config.PrefixLiveBinary
}

// histPrefix returns the historical artifact prefix for a content kind.
func histPrefix(k ContentKind) string {
	if k == Text {
		return config.PrefixHistText
	}
	return config.PrefixHistBinary
}
