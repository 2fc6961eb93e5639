package reporting

import (
	"fmt"
	"os"
	"path/filepath"
)

// Output file names.
const (
	ReportFile   = "REPORT.md"
	SweepCSVFile = "sweep_points.csv"
	DefenseFile  = "defense_comparison.csv"
)

// WriteFiles renders r into dir, creating it if needed, and returns the
// written paths.
func WriteFiles(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name    string
		content string
	}{
		{ReportFile, RenderMarkdown(r)},
		{SweepCSVFile, RenderSweepCSV(r.Sweep)},
		{DefenseFile, RenderDefenseCSV(r.Defenses)},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
