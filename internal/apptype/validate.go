package apptype

import (
	"errors"
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
)

// invalid wraps an ozzo validation error so callers can match ErrInvalidArgument.
func invalid(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", apperr.ErrInvalidArgument, what, err)
}

var propertiesRule = validation.By(func(value interface{}) error {
	props, _ := value.(Properties)
	for k, p := range props {
		if k == "" {
			return errors.New("property key must not be empty")
		}
		switch p.Kind {
		case KindString, KindNumber, KindBool:
		default:
			return fmt.Errorf("property %q has unknown kind %q", k, p.Kind)
		}
	}
	return nil
})

// Validate checks required fields and normalizes Tags into a sorted set.
func (d *Document) Validate() error {
	err := validation.ValidateStruct(d,
		validation.Field(&d.ID, validation.Required),
		validation.Field(&d.Content, validation.Required),
	)
	if err != nil {
		return invalid("document", err)
	}
	d.Tags = normalizeTags(d.Tags)
	return nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (n GraphNode) Validate() error {
	return invalid("graph node", validation.ValidateStruct(&n,
		validation.Field(&n.ID, validation.Required),
		validation.Field(&n.Type, validation.Required),
		validation.Field(&n.Properties, propertiesRule),
	))
}

func (e GraphEdge) Validate() error {
	return invalid("graph edge", validation.ValidateStruct(&e,
		validation.Field(&e.SourceID, validation.Required),
		validation.Field(&e.TargetID, validation.Required),
		validation.Field(&e.RelationshipType, validation.Required),
		validation.Field(&e.Strength,
			validation.Required,
			validation.Min(0.0).Exclusive(),
			validation.Max(1.0),
		),
		validation.Field(&e.Properties, propertiesRule),
	))
}

func (m MetricPoint) Validate() error {
	return invalid("metric point", validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required),
	))
}
