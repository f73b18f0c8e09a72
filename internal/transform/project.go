package transform

import (
	"fmt"
	"strings"

	"hubstage/pkg/models"
)

// ProjectedColumn is one "name AS alias" item of a projection.
type ProjectedColumn struct {
	Name  string
	Alias string
}

// Projection is the column list of a base result set, in configured order.
type Projection struct {
	Items []ProjectedColumn
}

// Empty reports whether no configured column survived.
func (p Projection) Empty() bool {
	return len(p.Items) == 0
}

// Aliases returns the output column names.
func (p Projection) Aliases() []string {
	out := make([]string, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.Alias
	}
	return out
}

// SQL renders the select list, one item per line, each prefixed by indent.
func (p Projection) SQL(indent string) string {
	lines := make([]string, len(p.Items))
	for i, it := range p.Items {
		lines[i] = fmt.Sprintf("%s%s AS %s", indent, it.Name, it.Alias)
	}
	return strings.Join(lines, ",\n")
}

// ProjectColumns keeps each configured column whose name exists in source,
// compared case-insensitively, in configured order, with its alias applied.
// Configured columns absent from source are dropped and reported.
func ProjectColumns(source []string, specs []models.ColumnSpec) (Projection, []Advisory) {
	f := newFolder()
	present := make(map[string]struct{}, len(source))
	for _, c := range source {
		present[f.key(c)] = struct{}{}
	}

	var (
		proj Projection
		advs []Advisory
	)
	for _, spec := range specs {
		if _, ok := present[f.key(spec.Name)]; !ok {
			advs = append(advs, Advisory{
				Kind:    AdvisoryMissingColumn,
				Column:  spec.Name,
				Message: fmt.Sprintf("column %q is not in the source table and was dropped", spec.Name),
			})
			continue
		}
		proj.Items = append(proj.Items, ProjectedColumn{Name: spec.Name, Alias: spec.OutputName()})
	}
	return proj, advs
}

// duplicateAliases reports every output name used more than once,
// compared case-insensitively, in first-seen order.
func duplicateAliases(names []string) []Advisory {
	f := newFolder()
	counts := make(map[string]int, len(names))
	var order []string
	for _, n := range names {
		k := f.key(n)
		if counts[k] == 0 {
			order = append(order, n)
		}
		counts[k]++
	}

	var advs []Advisory
	for _, n := range order {
		if c := counts[f.key(n)]; c > 1 {
			advs = append(advs, Advisory{
				Kind:    AdvisoryDuplicateAlias,
				Column:  n,
				Message: fmt.Sprintf("output column %q is produced %d times", n, c),
			})
		}
	}
	return advs
}
