package harness

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// Scenario validation error codes (E200-E209).
const (
	ErrScenarioSyntax   = "E201" // not valid YAML
	ErrScenarioSchema   = "E202" // violates the scenario schema
	ErrScenarioSemantic = "E203" // schema-valid but unusable (unknown fixture, ...)
)

// ValidationError is one problem found in a scenario file.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

//go:embed scenario.cue
var scenarioSchema string

// loadSchema compiles the schema into a fresh context; a cue.Context is
// not safe for concurrent use.
func loadSchema() (*cue.Context, cue.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(scenarioSchema, cue.Filename("scenario.cue"))
	if err := v.Err(); err != nil {
		return nil, cue.Value{}, fmt.Errorf("compile scenario schema: %w", err)
	}
	return ctx, v.LookupPath(cue.ParsePath("#Scenario")), nil
}

// ValidateScenario checks scenario YAML against the CUE schema and then
// against what the runner can execute. Returns all errors found.
func ValidateScenario(data []byte) []ValidationError {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return []ValidationError{{
			Field:   "yaml",
			Message: err.Error(),
			Code:    ErrScenarioSyntax,
		}}
	}

	ctx, def, err := loadSchema()
	if err != nil {
		return []ValidationError{{Field: "schema", Message: err.Error(), Code: ErrScenarioSchema}}
	}

	// the schema cannot tell a mapping from a scalar without this
	if _, ok := raw.(map[string]any); !ok {
		return []ValidationError{{
			Field:   "scenario",
			Message: "scenario must be a mapping",
			Code:    ErrScenarioSchema,
		}}
	}

	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		var errs []ValidationError
		for _, e := range cueerrors.Errors(err) {
			format, args := e.Msg()
			errs = append(errs, ValidationError{
				Field:   strings.Join(e.Path(), "."),
				Message: fmt.Sprintf(format, args...),
				Code:    ErrScenarioSchema,
			})
		}
		return errs
	}

	if _, err := ParseScenario(data); err != nil {
		return []ValidationError{{
			Field:   "scenario",
			Message: err.Error(),
			Code:    ErrScenarioSemantic,
		}}
	}
	return nil
}
