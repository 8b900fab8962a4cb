package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/navstack/internal/compiler"
)

// Error code constants shared by all commands. Catalog validation codes
// (E1xx) come from the compiler package.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeCompileFailed = "E006" // Catalog shape or type error
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeResolveFailed = "E008" // Deep link could not be applied
	ErrCodeJournal       = "E009" // Journal open/read error
)

// LoadResult is a compiled catalog with its validation errors.
type LoadResult struct {
	Catalog   *compiler.Catalog
	FileCount int

	// Errors holds cross-reference problems. The catalog compiled, but
	// must not be used to build an engine while Errors is non-empty.
	Errors []compiler.ValidationError
}

// LoadError is a catalog that could not be compiled at all.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the source line of the error, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// LoadCatalog compiles and validates the catalog in dir.
// Returns a *LoadError when the catalog cannot be compiled.
func LoadCatalog(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	catalog, err := compiler.LoadCatalog(dir)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return nil, &LoadError{Code: ErrCodeCompileFailed, Message: fmt.Sprintf("%s: %s", ce.Field, ce.Message), Pos: ce.Pos}
		}
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}

	return &LoadResult{
		Catalog:   catalog,
		FileCount: len(files),
		Errors:    compiler.ValidateCatalog(catalog),
	}, nil
}

// loadValidCatalog is LoadCatalog for commands that need a usable catalog:
// validation errors become an ExitCommandError.
func loadValidCatalog(dir string) (*compiler.Catalog, error) {
	res, err := LoadCatalog(dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	if len(res.Errors) > 0 {
		errs := make([]error, len(res.Errors))
		for i, e := range res.Errors {
			errs[i] = e
		}
		return nil, WrapExitError(ExitCommandError, "invalid catalog", errors.Join(errs...))
	}
	return res.Catalog, nil
}
