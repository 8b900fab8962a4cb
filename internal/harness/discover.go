package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ScenarioDirError is returned when a scenario directory cannot be used.
type ScenarioDirError struct {
	Dir    string
	Reason string
}

// Error implements the error interface.
func (e *ScenarioDirError) Error() string {
	return fmt.Sprintf("scenario directory %s: %s", e.Dir, e.Reason)
}

// FindScenarios returns the .yaml and .yml files under dir, in lexical
// order. Files inside "golden" directories are skipped. If filter is set,
// only scenarios whose file name (without extension) matches the glob are
// returned.
func FindScenarios(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &ScenarioDirError{Dir: dir, Reason: "not found"}
	}
	if !info.IsDir() {
		return nil, &ScenarioDirError{Dir: dir, Reason: "not a directory"}
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(d.Name(), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// GoldenPath returns the golden file for a scenario file:
// <dir>/golden/<name>.golden.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}
