package transform

import (
	"context"
	"fmt"

	"hubstage/pkg/models"
)

// Catalog answers the live-schema questions strict validation asks.
type Catalog interface {
	Columns(ctx context.Context, schema, table string) ([]string, error)
	PropertyNames(ctx context.Context) ([]string, error)
	DuplicateOptionValues(ctx context.Context, property string) ([]string, error)
}

// ValidateProperties checks every label-flagged column of an object against
// the property reference data. A column whose property has no definition
// would only ever get NULL labels; a property with repeated option values
// would multiply rows in the label join. Both are reported, never raised.
func ValidateProperties(ctx context.Context, cat Catalog, object string, oc models.ObjectConfig, opts LabelOptions) ([]Advisory, error) {
	var flagged []models.ColumnSpec
	for _, c := range oc.Columns {
		if c.AddPropertyLabel {
			flagged = append(flagged, c)
		}
	}
	if len(flagged) == 0 {
		return nil, nil
	}

	names, err := cat.PropertyNames(ctx)
	if err != nil {
		return nil, err
	}
	defined := make(map[string]struct{}, len(names))
	for _, n := range names {
		defined[n] = struct{}{}
	}

	var advs []Advisory
	checked := make(map[string]bool)
	for _, c := range flagged {
		prop := opts.PropertyName(c.Name)
		if _, ok := defined[prop]; !ok {
			advs = append(advs, Advisory{
				Kind:    AdvisoryUnmatchedProperty,
				Column:  c.Name,
				Message: fmt.Sprintf("no property definition named %q; %s will always be NULL", prop, opts.LabelColumn(c.OutputName())),
			})
			continue
		}
		if checked[prop] {
			continue
		}
		checked[prop] = true

		dups, err := cat.DuplicateOptionValues(ctx, prop)
		if err != nil {
			return nil, err
		}
		if len(dups) > 0 {
			advs = append(advs, Advisory{
				Kind:    AdvisoryAmbiguousOptions,
				Column:  c.Name,
				Message: fmt.Sprintf("property %q repeats option values %v; matching rows will be duplicated", prop, dups),
			})
		}
	}
	return withObject(advs, object), nil
}
