package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var embedded embed.FS

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	// Money is numeric(14,2) everywhere; binary floats cannot hold paise exactly.
	floatTypeRe = regexp.MustCompile(`(?i)\b(real|float[48]?|double\s+precision)\b`)
)

// File is one goose SQL migration.
type File struct {
	Version int64
	Name    string
	Path    string
}

// Source returns the migrations to run: the set compiled into the binary when
// dir is empty, otherwise the directory on disk.
func Source(dir string) (fs.FS, error) {
	if strings.TrimSpace(dir) == "" {
		return fs.Sub(embedded, "migrations")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %q is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// Scan lists the SQL migrations at the root of fsys in version order.
func Scan(fsys fs.FS) ([]File, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	files := make([]File, 0, len(entries))
	byVersion := map[int64]string{}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		m := fileNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		if prev, ok := byVersion[version]; ok {
			return nil, fmt.Errorf("migrations %q and %q share version %d", prev, e.Name(), version)
		}
		byVersion[version] = e.Name()
		files = append(files, File{Version: version, Name: m[2], Path: e.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// ValidateDir checks the migrations in dir, or the embedded set when dir is empty.
func ValidateDir(dir string) error {
	fsys, err := Source(dir)
	if err != nil {
		return err
	}
	return Validate(fsys)
}

// Validate checks names, goose sections, reversibility and money column types.
func Validate(fsys fs.FS) error {
	files, err := Scan(fsys)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations found")
	}
	for _, f := range files {
		raw, err := fs.ReadFile(fsys, f.Path)
		if err != nil {
			return fmt.Errorf("read %q: %w", f.Path, err)
		}
		up, down, err := splitSections(string(raw))
		if err != nil {
			return fmt.Errorf("migration %q: %w", f.Path, err)
		}
		if loc := floatTypeRe.FindStringIndex(up); loc != nil {
			return fmt.Errorf("migration %q uses floating point type %q; store amounts as numeric", f.Path, up[loc[0]:loc[1]])
		}
		if !hasStatements(down) {
			return fmt.Errorf("migration %q has an empty down section", f.Path)
		}
	}
	return nil
}

func splitSections(sql string) (up, down string, err error) {
	upAt := strings.Index(sql, upMarker)
	downAt := strings.Index(sql, downMarker)
	switch {
	case upAt < 0:
		return "", "", fmt.Errorf("missing %q", upMarker)
	case downAt < 0:
		return "", "", fmt.Errorf("missing %q", downMarker)
	case downAt < upAt:
		return "", "", fmt.Errorf("%q must come before %q", upMarker, downMarker)
	}
	return sql[upAt+len(upMarker) : downAt], sql[downAt+len(downMarker):], nil
}

// hasStatements reports whether section holds anything besides comments and blank lines.
func hasStatements(section string) bool {
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return true
		}
	}
	return false
}
