// Package migrations embeds the schema files for the run and sweep-point
// stores. The stores apply them; this package only loads and splits them.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

// File is one migration. Version is the file name without extension.
type File struct {
	Version string
	SQL     string
}

// Postgres returns the simulation_runs migrations in version order.
func Postgres() ([]File, error) {
	return load(postgresFS, "postgres")
}

// Clickhouse returns the sweep_points migrations in version order.
func Clickhouse() ([]File, error) {
	return load(clickhouseFS, "clickhouse")
}

func load(fsys fs.FS, dir string) ([]File, error) {
	names, err := fs.Glob(fsys, dir+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dir, err)
	}
	sort.Strings(names)

	files := make([]File, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		files = append(files, File{
			Version: strings.TrimSuffix(path.Base(name), ".sql"),
			SQL:     string(data),
		})
	}
	return files, nil
}

// SplitStatements splits a script on semicolons that are outside string
// literals and comments. Blank statements are dropped. The ClickHouse
// native protocol accepts one statement per Exec.
func SplitStatements(script string) []string {
	var (
		stmts   []string
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(script); i++ {
		ch := script[i]
		switch {
		case inQuote:
			cur.WriteByte(ch)
			if ch == '\'' {
				if i+1 < len(script) && script[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
				} else {
					inQuote = false
				}
			}
		case ch == '\'':
			inQuote = true
			cur.WriteByte(ch)
		case ch == '-' && i+1 < len(script) && script[i+1] == '-':
			// Line comment: skip to end of line.
			for i < len(script) && script[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return stmts
}
