package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// CompileCatalog parses a CUE value into a Catalog.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the catalog root, e.g.:
//
//	location: home: {title: "Home"}
//	location: shell: {children: ["feed", "profile"], initial: 0}
//	guard: auth: {match: ["profile"], redirect: "login", unless: "authenticated"}
//	deeplink: "/item/{id}": ["home", "item"]
//
// CompileCatalog checks shapes and types only. Cross references are checked
// by ValidateCatalog.
func CompileCatalog(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{}
	var err error

	if c.Locations, err = parseLocations(v); err != nil {
		return nil, err
	}
	if len(c.Locations) == 0 {
		return nil, &CompileError{
			Field:   "location",
			Message: "at least one location is required",
			Pos:     v.Pos(),
		}
	}
	if c.Guards, err = parseGuards(v); err != nil {
		return nil, err
	}
	if c.DeepLinks, err = parseDeepLinks(v); err != nil {
		return nil, err
	}
	return c, nil
}

// parseLocations extracts location declarations, sorted by name.
func parseLocations(v cue.Value) ([]LocationSpec, error) {
	locVal := v.LookupPath(cue.ParsePath("location"))
	if !locVal.Exists() {
		return nil, nil
	}
	iter, err := locVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []LocationSpec
	for iter.Next() {
		name := fieldName(iter)
		lv := iter.Value()
		field := "location." + name

		spec := LocationSpec{Name: name, Path: "/" + name}
		if spec.Path, err = optionalString(lv, "path", field, spec.Path); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(spec.Path, "/") {
			return nil, &CompileError{Field: field + ".path", Message: "path must begin with /", Pos: lv.Pos()}
		}
		if spec.Title, err = optionalString(lv, "title", field, ""); err != nil {
			return nil, err
		}

		childVal := lv.LookupPath(cue.ParsePath("children"))
		if childVal.Exists() {
			if spec.Children, err = stringList(childVal, field+".children"); err != nil {
				return nil, err
			}
			if len(spec.Children) == 0 {
				return nil, &CompileError{
					Field:   field + ".children",
					Message: "children must not be empty",
					Pos:     childVal.Pos(),
				}
			}
		}

		initVal := lv.LookupPath(cue.ParsePath("initial"))
		if initVal.Exists() {
			n, err := initVal.Int64()
			if err != nil {
				return nil, &CompileError{Field: field + ".initial", Message: "initial must be an int", Pos: initVal.Pos()}
			}
			if !spec.IsStateful() {
				return nil, &CompileError{Field: field + ".initial", Message: "initial requires children", Pos: initVal.Pos()}
			}
			spec.Initial = int(n)
		}

		out = append(out, spec)
	}

	slices.SortFunc(out, func(a, b LocationSpec) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// parseGuards extracts guard declarations in declaration order, which is
// also their evaluation order.
func parseGuards(v cue.Value) ([]GuardSpec, error) {
	guardVal := v.LookupPath(cue.ParsePath("guard"))
	if !guardVal.Exists() {
		return nil, nil
	}
	iter, err := guardVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []GuardSpec
	for iter.Next() {
		name := fieldName(iter)
		gv := iter.Value()
		field := "guard." + name

		g := GuardSpec{Name: name}
		matchVal := gv.LookupPath(cue.ParsePath("match"))
		if !matchVal.Exists() {
			return nil, &CompileError{Field: field + ".match", Message: "match is required", Pos: gv.Pos()}
		}
		if g.Match, err = stringList(matchVal, field+".match"); err != nil {
			return nil, err
		}
		if g.Redirect, err = optionalString(gv, "redirect", field, ""); err != nil {
			return nil, err
		}
		if g.Block, err = optionalString(gv, "block", field, ""); err != nil {
			return nil, err
		}
		if g.When, err = optionalString(gv, "when", field, ""); err != nil {
			return nil, err
		}
		if g.Unless, err = optionalString(gv, "unless", field, ""); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// parseDeepLinks extracts deep link declarations. A pattern maps either to
// a list of location names or to {locations: [...]} / {defer: true}.
func parseDeepLinks(v cue.Value) ([]DeepLinkSpec, error) {
	dlVal := v.LookupPath(cue.ParsePath("deeplink"))
	if !dlVal.Exists() {
		return nil, nil
	}
	iter, err := dlVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []DeepLinkSpec
	for iter.Next() {
		pattern := fieldName(iter)
		dv := iter.Value()
		field := "deeplink." + pattern
		dl := DeepLinkSpec{Pattern: pattern}

		switch dv.IncompleteKind() {
		case cue.ListKind:
			if dl.Locations, err = stringList(dv, field); err != nil {
				return nil, err
			}
		case cue.StructKind:
			if lv := dv.LookupPath(cue.ParsePath("locations")); lv.Exists() {
				if dl.Locations, err = stringList(lv, field+".locations"); err != nil {
					return nil, err
				}
			}
			if fv := dv.LookupPath(cue.ParsePath("defer")); fv.Exists() {
				if dl.Defer, err = fv.Bool(); err != nil {
					return nil, &CompileError{Field: field + ".defer", Message: "defer must be a bool", Pos: fv.Pos()}
				}
			}
		default:
			return nil, &CompileError{
				Field:   field,
				Message: "must be a list of location names or a struct",
				Pos:     dv.Pos(),
			}
		}

		if !dl.Defer && len(dl.Locations) == 0 {
			return nil, &CompileError{Field: field, Message: "at least one location is required unless deferred", Pos: dv.Pos()}
		}
		out = append(out, dl)
	}
	return out, nil
}

// fieldName returns the unquoted label of the current field. Deep link
// patterns are quoted labels.
func fieldName(iter *cue.Iterator) string {
	label := iter.Selector().String()
	if s, err := strconv.Unquote(label); err == nil {
		return s
	}
	return label
}

func optionalString(v cue.Value, name, field, def string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return def, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field + "." + name, Message: name + " must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: v.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	ce := &CompileError{Field: "cue", Message: firstErr.Error()}
	if len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}

// LoadCatalog loads every .cue file in dir as one CUE instance and
// compiles it. The returned Catalog is not yet validated.
func LoadCatalog(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path %s is not a directory", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileCatalog(value)
}

// FindCUEFiles returns the .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
