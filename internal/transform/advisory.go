package transform

import "fmt"

// AdvisoryKind classifies a non-fatal generation finding.
type AdvisoryKind string

const (
	// AdvisoryMissingColumn: a configured column is absent from the source and was dropped.
	AdvisoryMissingColumn AdvisoryKind = "missing_column"
	// AdvisoryMissingIdentity: the identity column is absent from the source.
	AdvisoryMissingIdentity AdvisoryKind = "missing_identity"
	// AdvisoryDuplicateAlias: two output columns share a name.
	AdvisoryDuplicateAlias AdvisoryKind = "duplicate_alias"
	// AdvisoryEmptyProjection: nothing was projected, the model selects every source column.
	AdvisoryEmptyProjection AdvisoryKind = "empty_projection"
	// AdvisoryUnmatchedProperty: a label-flagged column has no property definition, so its labels are NULL.
	AdvisoryUnmatchedProperty AdvisoryKind = "unmatched_property"
	// AdvisoryAmbiguousOptions: a property declares the same option value twice, so the label join fans out rows.
	AdvisoryAmbiguousOptions AdvisoryKind = "ambiguous_options"
)

// Advisory is a non-fatal finding attached to a generated model.
type Advisory struct {
	Kind    AdvisoryKind `json:"kind"`
	Object  string       `json:"object,omitempty"`
	Column  string       `json:"column,omitempty"`
	Message string       `json:"message"`
}

func (a Advisory) String() string {
	if a.Object == "" {
		return fmt.Sprintf("%s: %s", a.Kind, a.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", a.Kind, a.Object, a.Message)
}

func withObject(advs []Advisory, object string) []Advisory {
	for i := range advs {
		advs[i].Object = object
	}
	return advs
}
