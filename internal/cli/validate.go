package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/navstack/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Watch    bool
	Debounce time.Duration
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Files     int                        `json:"files"`
	Locations int                        `json:"locations"`
	Guards    int                        `json:"guards"`
	DeepLinks int                        `json:"deeplinks"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [catalog-dir]",
		Short: "Validate a navigation catalog",
		Long: `Validate a CUE navigation catalog.

Compiles the catalog and checks cross references: child, guard, redirect and
deep link targets, initial child indices, path globs and stateful nesting
cycles. With --watch, re-validates whenever a .cue file changes.

Exit codes:
  0 - Catalog is valid
  1 - Validation errors
  2 - Command error (missing directory, CUE syntax error, etc.)

Examples:
  navstack validate ./catalog
  navstack validate ./catalog --watch`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := catalogArg(rootOpts, args)
			if err != nil {
				return err
			}
			return runValidate(opts, dir, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-validate when .cue files change")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 200*time.Millisecond, "quiet period before re-validating in watch mode")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if !opts.Watch {
		return validateOnce(formatter, dir)
	}

	formatter.VerboseLog("Watching %s", dir)
	return watchCatalog(cmd.Context(), dir, opts.Debounce, func() {
		// In watch mode a failed validation is reported and watching goes on.
		if err := validateOnce(formatter, dir); err != nil {
			var exitErr *ExitError
			if !errors.As(err, &exitErr) {
				fmt.Fprintf(formatter.GetErrWriter(), "validate: %v\n", err)
			}
		}
	})
}

// validateOnce loads, validates and reports the catalog in dir.
func validateOnce(formatter *OutputFormatter, dir string) error {
	res, err := LoadCatalog(dir)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, dir)

	result := ValidationResult{
		Valid:     len(res.Errors) == 0,
		Files:     res.FileCount,
		Locations: len(res.Catalog.Locations),
		Guards:    len(res.Catalog.Guards),
		DeepLinks: len(res.Catalog.DeepLinks),
		Errors:    res.Errors,
	}
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Catalog valid (%d locations, %d guards, %d deep links)\n",
		result.Locations, result.Guards, result.DeepLinks)
	return nil
}

// outputLoadError reports a catalog that could not be compiled.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	message := loadErr.Message
	if line := loadErr.Line(); line > 0 {
		message = fmt.Sprintf("%s:%d: %s", loadErr.Pos.Filename(), line, message)
	}
	return outputValidateError(formatter, loadErr.Code, message, nil)
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, message)
}

// outputValidationErrors outputs cross-reference errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.Encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failure
}
