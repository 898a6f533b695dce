package migration

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Scan reads every *.sql file at the root of fsys and returns them ordered by version.
func Scan(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		m, err := parseFile(fsys, entry.Name())
		if err != nil {
			return nil, err
		}
		if other, dup := seen[m.Version]; dup {
			return nil, newMigrationError(m, "scan", fmt.Errorf("%w: also defined by %s", ErrDuplicateVersion, other))
		}
		seen[m.Version] = m.Name
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func parseFile(fsys fs.FS, name string) (Migration, error) {
	matches := fileNamePattern.FindStringSubmatch(name)
	if matches == nil {
		return Migration{}, &MigrationError{Name: name, Operation: "validate filename",
			Err: fmt.Errorf("%w: %q does not match {version}_{description}.sql", ErrInvalidMigrationFile, name)}
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil || version <= 0 {
		return Migration{}, &MigrationError{Name: name, Operation: "validate filename",
			Err: fmt.Errorf("%w: version %q must be a positive number", ErrInvalidMigrationFile, matches[1])}
	}

	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Migration{}, &MigrationError{Version: version, Name: name, Operation: "read", Err: err}
	}
	sql := string(content)

	m := Migration{
		Version:     version,
		Name:        name,
		Description: headerDescription(sql),
		SQL:         sql,
		Checksum:    fmt.Sprintf("%x", sha256.Sum256(content)),
	}
	if m.Description == "" {
		m.Description = strings.ReplaceAll(matches[2], "_", " ")
	}
	if len(splitStatements(sql)) == 0 {
		return Migration{}, newMigrationError(m, "validate content", fmt.Errorf("%w: no statements", ErrInvalidMigrationFile))
	}
	return m, nil
}

// headerDescription returns the text of a leading "-- Description:" comment.
func headerDescription(sql string) string {
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if rest, ok := strings.CutPrefix(line, "-- Description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// splitStatements strips line comments and splits on semicolons. Migration
// files must not contain semicolons inside string literals or triggers.
func splitStatements(sql string) []string {
	var cleaned strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		cleaned.WriteString(line)
		cleaned.WriteByte('\n')
	}

	var statements []string
	for _, stmt := range strings.Split(cleaned.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
