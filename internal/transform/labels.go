package transform

import (
	"fmt"
	"strings"

	"hubstage/pkg/models"
)

// LabelOptions locates the property reference tables and fixes the naming contract.
type LabelOptions struct {
	// Schema qualifies the reference tables; empty leaves them unqualified.
	Schema         string
	Tables         models.PropertyTables
	PropertyPrefix string
	// Suffix is appended to the alias, after an underscore, to name label columns.
	Suffix string
}

// LabelColumn returns the name of the label column for alias.
func (o LabelOptions) LabelColumn(alias string) string {
	suffix := o.Suffix
	if suffix == "" {
		suffix = "label"
	}
	return alias + "_" + suffix
}

// PropertyName is the definition name a column resolves its labels against.
func (o LabelOptions) PropertyName(column string) string {
	return strings.TrimPrefix(column, o.PropertyPrefix)
}

// MergeLabels selects every column of base plus one nullable label column per
// label-flagged spec. Each label comes from a LEFT JOIN against that property's
// (value, label) option pairs, so base rows are never dropped. Without flagged
// specs the result is a pass-through of base.
//
// Option values are assumed unique per property; duplicates multiply rows.
func MergeLabels(specs []models.ColumnSpec, base string, opts LabelOptions) string {
	var flagged []models.ColumnSpec
	for _, s := range specs {
		if s.AddPropertyLabel {
			flagged = append(flagged, s)
		}
	}
	if len(flagged) == 0 {
		return "SELECT * FROM " + base
	}

	t := opts.Tables
	var b strings.Builder
	b.WriteString("SELECT\n    " + base + ".*")
	for i, s := range flagged {
		fmt.Fprintf(&b, ",\n    %s.label AS %s", lookupRef(i), opts.LabelColumn(s.OutputName()))
	}
	b.WriteString("\nFROM " + base)
	for i, s := range flagged {
		ref := lookupRef(i)
		b.WriteString("\nLEFT JOIN (\n")
		fmt.Fprintf(&b, "    SELECT\n        opt.%s AS value,\n        opt.%s AS label\n", t.Value, t.Label)
		fmt.Fprintf(&b, "    FROM %s AS opt\n", Qualify(opts.Schema, t.Options))
		fmt.Fprintf(&b, "    INNER JOIN %s AS prop\n", Qualify(opts.Schema, t.Definitions))
		fmt.Fprintf(&b, "        ON opt.%s = prop.%s\n", t.OptionParentID, t.DefinitionID)
		fmt.Fprintf(&b, "    WHERE prop.%s = %s\n", t.Name, quoteLiteral(opts.PropertyName(s.Name)))
		fmt.Fprintf(&b, ") AS %s\n    ON %s.%s = %s.value", ref, base, s.OutputName(), ref)
	}
	return b.String()
}

func lookupRef(i int) string {
	return fmt.Sprintf("lbl_%d", i+1)
}
