package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s: amounts are numeric(14,2), ids are uuid.
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s here; an empty down section fails validation.
-- +goose StatementEnd
`

// CreateSQLMigration writes <dir>/<version>_<name>.sql and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	return createAt(dir, name, time.Now().UTC())
}

func createAt(dir, name string, now time.Time) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(nameCleanRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version, err := nextVersion(dir, now)
	if err != nil {
		return "", err
	}
	full := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version, slug))
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", full, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, migrationTemplate, slug); err != nil {
		return "", fmt.Errorf("write %q: %w", full, err)
	}
	return full, nil
}

// nextVersion keeps versions strictly increasing even when the clock lags the
// newest migration already in dir.
func nextVersion(dir string, now time.Time) (string, error) {
	fsys, err := Source(dir)
	if err != nil {
		return "", err
	}
	files, err := Scan(fsys)
	if err != nil {
		return "", err
	}
	candidate := now.UTC().Truncate(time.Second)
	if len(files) > 0 {
		latest, err := time.Parse(versionLayout, fmt.Sprintf("%014d", files[len(files)-1].Version))
		if err != nil {
			return "", fmt.Errorf("parse version %d: %w", files[len(files)-1].Version, err)
		}
		if !candidate.After(latest) {
			candidate = latest.Add(time.Second)
		}
	}
	return candidate.Format(versionLayout), nil
}
