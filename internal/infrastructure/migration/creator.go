package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const migrationUpTemplate = `-- Migration: {{.Name}}
-- Description: {{.Description}}
-- Dialect: {{.Dialect}}
-- Created: {{.Timestamp}}

`

const migrationDownTemplate = `-- Migration: {{.Name}} (Rollback)
-- Dialect: {{.Dialect}}

`

// MigrationFile describes one generated up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Dialect     string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// CreateMigration writes an empty up/down pair for every dialect under
// sqlDir/<dialect>. The version continues the existing six-digit sequence
// so the postgres and sqlite sets stay aligned.
func CreateMigration(sqlDir, name, description string) ([]*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}

	next, err := nextVersion(sqlDir)
	if err != nil {
		return nil, err
	}
	version := fmt.Sprintf("%06d", next)
	timestamp := time.Now().UTC().Format(time.RFC3339)

	created := make([]*MigrationFile, 0, 2)
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		dir := filepath.Join(sqlDir, dialect)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return created, fmt.Errorf("failed to create migrations directory: %w", err)
		}

		base := version + "_" + slug
		mf := &MigrationFile{
			Version:     version,
			Name:        name,
			Description: description,
			Dialect:     dialect,
			Timestamp:   timestamp,
			UpPath:      filepath.Join(dir, base+".up.sql"),
			DownPath:    filepath.Join(dir, base+".down.sql"),
		}
		if err := writeTemplate(mf.UpPath, migrationUpTemplate, mf); err != nil {
			return created, fmt.Errorf("failed to create up migration: %w", err)
		}
		if err := writeTemplate(mf.DownPath, migrationDownTemplate, mf); err != nil {
			_ = os.Remove(mf.UpPath)
			return created, fmt.Errorf("failed to create down migration: %w", err)
		}
		created = append(created, mf)
	}
	return created, nil
}

func nextVersion(sqlDir string) (int, error) {
	highest := 0
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		names, err := listNames(os.DirFS(filepath.Join(sqlDir, dialect)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}
		for _, n := range names {
			if v := versionOf(n); v > highest {
				highest = v
			}
		}
	}
	return highest + 1, nil
}

func versionOf(name string) int {
	prefix, _, _ := strings.Cut(name, "_")
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0
	}
	return v
}

func writeTemplate(path, tmplContent string, data *MigrationFile) error {
	tmpl, err := template.New("migration").Parse(tmplContent)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()

	return tmpl.Execute(f, data)
}

// sanitizeName converts a migration name to snake case file name characters
func sanitizeName(name string) string {
	result := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			result = append(result, c)
		case c >= 'A' && c <= 'Z':
			result = append(result, c+'a'-'A')
		case c == ' ' || c == '-' || c == '_':
			if len(result) > 0 && result[len(result)-1] != '_' {
				result = append(result, '_')
			}
		}
	}
	return strings.TrimSuffix(string(result), "_")
}

// ListMigrations returns the embedded migration names for dialect in version order
func ListMigrations(dialect string) ([]string, error) {
	files, err := Source(dialect)
	if err != nil {
		return nil, err
	}
	return listNames(files)
}

func listNames(files fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries)/2)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok {
			names = append(names, base)
		}
	}
	sort.Strings(names)
	return names, nil
}
