package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/navstack/internal/compiler"
	"github.com/roach88/navstack/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [catalog-dir]",
		Short: "Compile a catalog to canonical JSON",
		Long: `Compile a CUE navigation catalog to canonical JSON.

The catalog is validated first. The output is byte-stable: the same catalog
always produces the same bytes, so compiled catalogs can be diffed and
checked in.

Examples:
  navstack compile ./catalog
  navstack compile ./catalog -o catalog.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := catalogArg(rootOpts, args)
			if err != nil {
				return err
			}
			return runCompile(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	res, err := LoadCatalog(dir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, dir)

	if len(res.Errors) > 0 {
		return outputValidationErrors(formatter, ValidationResult{
			Files:     res.FileCount,
			Locations: len(res.Catalog.Locations),
			Guards:    len(res.Catalog.Guards),
			DeepLinks: len(res.Catalog.DeepLinks),
			Errors:    res.Errors,
		})
	}

	data, err := ir.MarshalCanonical(catalogCanonical(res.Catalog))
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, fmt.Sprintf("marshaling catalog: %v", err), nil)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return outputValidateError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.JSON() {
		return formatter.Success(res.Catalog)
	}
	if opts.Output == "" {
		fmt.Fprintln(formatter.Writer, string(data))
		return nil
	}
	outputCompileSummary(formatter, res.Catalog, opts.Output)
	return nil
}

// outputCompileSummary prints what was compiled and where it went.
func outputCompileSummary(formatter *OutputFormatter, c *compiler.Catalog, outputFile string) {
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d location(s), %d guard(s), %d deep link(s)\n\n",
		len(c.Locations), len(c.Guards), len(c.DeepLinks))

	fmt.Fprintln(w, "Locations:")
	for _, l := range c.Locations {
		if l.IsStateful() {
			fmt.Fprintf(w, "  %s %s → [%s] (initial %d)\n", l.Name, l.Path, strings.Join(l.Children, ", "), l.Initial)
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", l.Name, l.Path)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Wrote canonical catalog to %s\n", outputFile)
}

// catalogCanonical converts a catalog to the value tree accepted by
// ir.MarshalCanonical. Optional fields are omitted when empty.
func catalogCanonical(c *compiler.Catalog) map[string]any {
	locations := make([]any, len(c.Locations))
	for i, l := range c.Locations {
		m := map[string]any{"name": l.Name, "path": l.Path}
		if l.Title != "" {
			m["title"] = l.Title
		}
		if l.IsStateful() {
			m["children"] = l.Children
			m["initial"] = l.Initial
		}
		locations[i] = m
	}

	guards := make([]any, len(c.Guards))
	for i, g := range c.Guards {
		m := map[string]any{"name": g.Name, "match": g.Match}
		for k, v := range map[string]string{"redirect": g.Redirect, "block": g.Block, "when": g.When, "unless": g.Unless} {
			if v != "" {
				m[k] = v
			}
		}
		guards[i] = m
	}

	links := make([]any, len(c.DeepLinks))
	for i, d := range c.DeepLinks {
		m := map[string]any{"pattern": d.Pattern}
		if len(d.Locations) > 0 {
			m["locations"] = d.Locations
		}
		if d.Defer {
			m["defer"] = true
		}
		links[i] = m
	}

	return map[string]any{
		"locations": locations,
		"guards":    guards,
		"deeplinks": links,
	}
}
