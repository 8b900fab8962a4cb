package compiler

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"
)

// Validation error codes (E100-E199)
const (
	// Location errors (E101-E109)
	ErrDuplicatePath     = "E101" // two locations share a path
	ErrUnknownChild      = "E102" // child names an undeclared location
	ErrInitialOutOfRange = "E103" // initial is not a valid child index
	ErrNestingCycle      = "E104" // stateful location contains itself
	ErrInvalidName       = "E105" // location name is not an identifier
	ErrDuplicateChild    = "E106" // child listed twice

	// Guard errors (E110-E119)
	ErrUnknownGuardMatch = "E110" // match names an undeclared location
	ErrUnknownRedirect   = "E111" // redirect names an undeclared location
	ErrGuardAction       = "E112" // none or both of redirect/block
	ErrInvalidGlob       = "E113" // malformed path glob
	ErrRedirectSelfMatch = "E114" // redirect target matched by the same guard

	// Deep link errors (E120-E129)
	ErrInvalidPattern     = "E120" // pattern must begin with / and not end with /
	ErrUnknownLinkTarget  = "E121" // deep link names an undeclared location
	ErrDeferWithLocations = "E122" // deferred pattern lists locations
)

// ValidationError represents a catalog validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidateCatalog checks cross references and structure.
// Returns all errors found (does not fail-fast).
func ValidateCatalog(c *Catalog) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateLocations(c)...)
	errs = append(errs, validateGuards(c)...)
	errs = append(errs, validateDeepLinks(c)...)
	for _, cyc := range AnalyzeNesting(c) {
		errs = append(errs, ValidationError{
			Field:   "location." + cyc.Path[0],
			Message: cyc.Message,
			Code:    ErrNestingCycle,
		})
	}
	return errs
}

func validateLocations(c *Catalog) []ValidationError {
	var errs []ValidationError
	byPath := make(map[string]string)

	for _, l := range c.Locations {
		field := "location." + l.Name

		if !namePattern.MatchString(l.Name) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("name %q must be an identifier", l.Name),
				Code:    ErrInvalidName,
			})
		}

		if other, dup := byPath[l.Path]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".path",
				Message: fmt.Sprintf("path %s already used by %s", l.Path, other),
				Code:    ErrDuplicatePath,
			})
		} else {
			byPath[l.Path] = l.Name
		}

		if !l.IsStateful() {
			continue
		}
		seen := make(map[string]bool, len(l.Children))
		for i, child := range l.Children {
			if _, ok := c.Lookup(child); !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.children[%d]", field, i),
					Message: fmt.Sprintf("unknown location %q", child),
					Code:    ErrUnknownChild,
				})
			}
			if seen[child] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.children[%d]", field, i),
					Message: fmt.Sprintf("child %q listed twice", child),
					Code:    ErrDuplicateChild,
				})
			}
			seen[child] = true
		}
		if l.Initial < 0 || l.Initial >= len(l.Children) {
			errs = append(errs, ValidationError{
				Field:   field + ".initial",
				Message: fmt.Sprintf("initial %d out of range [0,%d)", l.Initial, len(l.Children)),
				Code:    ErrInitialOutOfRange,
			})
		}
	}
	return errs
}

func validateGuards(c *Catalog) []ValidationError {
	var errs []ValidationError
	for _, g := range c.Guards {
		field := "guard." + g.Name

		var globs []string
		for i, m := range g.Match {
			if strings.HasPrefix(m, "/") {
				if _, err := path.Match(m, ""); err != nil {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("%s.match[%d]", field, i),
						Message: fmt.Sprintf("invalid glob %q", m),
						Code:    ErrInvalidGlob,
					})
				}
				globs = append(globs, m)
				continue
			}
			spec, ok := c.Lookup(m)
			if !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.match[%d]", field, i),
					Message: fmt.Sprintf("unknown location %q", m),
					Code:    ErrUnknownGuardMatch,
				})
				continue
			}
			globs = append(globs, spec.Path)
		}

		if (g.Redirect == "") == (g.Block == "") {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "exactly one of redirect or block is required",
				Code:    ErrGuardAction,
			})
		}
		if g.Redirect == "" {
			continue
		}
		target, ok := c.Lookup(g.Redirect)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".redirect",
				Message: fmt.Sprintf("unknown location %q", g.Redirect),
				Code:    ErrUnknownRedirect,
			})
			continue
		}
		if slices.ContainsFunc(globs, func(glob string) bool {
			ok, _ := path.Match(glob, target.Path)
			return ok
		}) && g.When == "" && g.Unless == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".redirect",
				Message: fmt.Sprintf("unconditional guard matches its own redirect target %s", target.Path),
				Code:    ErrRedirectSelfMatch,
			})
		}
	}
	return errs
}

func validateDeepLinks(c *Catalog) []ValidationError {
	var errs []ValidationError
	for _, dl := range c.DeepLinks {
		field := "deeplink." + dl.Pattern

		if !strings.HasPrefix(dl.Pattern, "/") || (len(dl.Pattern) > 1 && strings.HasSuffix(dl.Pattern, "/")) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "pattern must begin with / and must not end with /",
				Code:    ErrInvalidPattern,
			})
		}
		if dl.Defer && len(dl.Locations) > 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "deferred pattern must not list locations",
				Code:    ErrDeferWithLocations,
			})
		}
		for i, name := range dl.Locations {
			if _, ok := c.Lookup(name); !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, i),
					Message: fmt.Sprintf("unknown location %q", name),
					Code:    ErrUnknownLinkTarget,
				})
			}
		}
	}
	return errs
}
