package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a scenario before it is written or after it is read:
// field ranges via struct tags, then graph consistency.
func Validate(s *Scenario) error {
	if s == nil {
		return NewValidationError("scenario", "is nil")
	}
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}

	nodes := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		if _, dup := nodes[n.ID]; dup {
			return NewValidationError("nodes", "duplicate node id %q", n.ID)
		}
		nodes[n.ID] = struct{}{}
	}

	if s.ScenarioType == ScenarioRealistic && len(s.Edges) > 0 {
		return NewValidationError("edges", "realistic scenarios cannot carry explicit edges")
	}
	edges := make(map[string]struct{}, len(s.Edges))
	for _, e := range s.Edges {
		if _, dup := edges[e.ID]; dup {
			return NewValidationError("edges", "duplicate edge id %q", e.ID)
		}
		edges[e.ID] = struct{}{}
		if _, ok := nodes[e.Source]; !ok {
			return NewValidationError("edges", "edge %q references unknown source %q", e.ID, e.Source)
		}
		if _, ok := nodes[e.Target]; !ok {
			return NewValidationError("edges", "edge %q references unknown target %q", e.ID, e.Target)
		}
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return &ValidationError{Field: verrs[0].Namespace(), Reason: strings.Join(msgs, "; ")}
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be > %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
