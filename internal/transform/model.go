package transform

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"hubstage/pkg/models"
)

// BaseRelation is the CTE name of the projected base result set.
const BaseRelation = "base"

// Options carries everything generation needs besides the object itself.
type Options struct {
	SourceSchema string
	TargetSchema string
	ModelPrefix  string
	Labels       LabelOptions
}

// OptionsFromConfig derives generation options from a loaded configuration.
func OptionsFromConfig(cfg *models.Config) Options {
	return Options{
		SourceSchema: cfg.Source.Schema,
		TargetSchema: cfg.Target.Schema,
		ModelPrefix:  cfg.Target.TablePrefix,
		Labels: LabelOptions{
			Schema:         cfg.Source.Schema,
			Tables:         cfg.Source.Properties,
			PropertyPrefix: cfg.Source.PropertyPrefix,
			Suffix:         cfg.Generation.LabelSuffix,
		},
	}
}

// Result is a generated staging model together with its advisories.
type Result struct {
	Object      string     `json:"object"`
	Model       string     `json:"model"`
	Source      string     `json:"source"`
	SQL         string     `json:"-"`
	Columns     []string   `json:"columns"`
	Advisories  []Advisory `json:"advisories,omitempty"`
	Fingerprint uint64     `json:"fingerprint"`
}

// HasAdvisories reports whether generation degraded anywhere.
func (r *Result) HasAdvisories() bool {
	return len(r.Advisories) > 0
}

// Fingerprint hashes generated text; identical inputs give identical hashes.
func Fingerprint(sql string) uint64 {
	return xxh3.HashString(sql)
}

// BuildModel compiles the staging query of one object type from the columns
// present in its raw table. Schema and configuration mismatches degrade into
// advisories; only names that cannot be rendered as identifiers are errors.
func BuildModel(object string, oc models.ObjectConfig, sourceColumns []string, opts Options) (*Result, error) {
	if err := CheckOptions(opts); err != nil {
		return nil, err
	}
	if err := checkObject(object, oc); err != nil {
		return nil, err
	}

	source := Qualify(opts.SourceSchema, TableName(object, oc))

	specs, identityAdded := withIdentity(oc)
	proj, advs := ProjectColumns(sourceColumns, specs)
	if identityAdded && len(advs) > 0 && advs[0].Column == oc.IdentityColumn {
		advs[0].Kind = AdvisoryMissingIdentity
		advs[0].Message = fmt.Sprintf("identity column %q is not in the source table", oc.IdentityColumn)
	}

	var (
		baseSQL string
		columns []string
		merged  string
	)
	if proj.Empty() {
		advs = append(advs, Advisory{
			Kind:    AdvisoryEmptyProjection,
			Message: "no configured column is present in the source table; selecting every source column",
		})
		baseSQL = "    SELECT *\n    FROM " + source
		columns = append(columns, sourceColumns...)
		merged = MergeLabels(nil, BaseRelation, opts.Labels)
	} else {
		baseSQL = "    SELECT\n" + proj.SQL("        ") + "\n    FROM " + source
		projected := projectedSpecs(specs, proj)
		columns = proj.Aliases()
		for _, s := range projected {
			if s.AddPropertyLabel {
				columns = append(columns, opts.Labels.LabelColumn(s.OutputName()))
			}
		}
		merged = MergeLabels(projected, BaseRelation, opts.Labels)
	}
	advs = append(advs, duplicateAliases(columns)...)

	sql := "WITH " + BaseRelation + " AS (\n" + baseSQL + "\n)\n" + merged + "\n"
	return &Result{
		Object:      object,
		Model:       opts.ModelPrefix + object,
		Source:      source,
		SQL:         sql,
		Columns:     columns,
		Advisories:  withObject(advs, object),
		Fingerprint: Fingerprint(sql),
	}, nil
}

// withIdentity puts the identity column first unless it is already configured.
func withIdentity(oc models.ObjectConfig) ([]models.ColumnSpec, bool) {
	if oc.IdentityColumn == "" {
		return oc.Columns, false
	}
	f := newFolder()
	for _, c := range oc.Columns {
		if f.key(c.Name) == f.key(oc.IdentityColumn) {
			return oc.Columns, false
		}
	}
	specs := make([]models.ColumnSpec, 0, len(oc.Columns)+1)
	specs = append(specs, models.ColumnSpec{Name: oc.IdentityColumn})
	return append(specs, oc.Columns...), true
}

// projectedSpecs keeps the specs that made it into the projection, so label
// joins never reference a column the base relation lacks.
func projectedSpecs(specs []models.ColumnSpec, proj Projection) []models.ColumnSpec {
	out := make([]models.ColumnSpec, 0, len(proj.Items))
	i := 0
	for _, s := range specs {
		if i < len(proj.Items) && proj.Items[i].Name == s.Name && proj.Items[i].Alias == s.OutputName() {
			out = append(out, s)
			i++
		}
	}
	return out
}

// TableName is the raw table an object is read from.
func TableName(object string, oc models.ObjectConfig) string {
	if oc.Table != "" {
		return oc.Table
	}
	return object
}

// CheckOptions rejects schema, prefix and property table names that cannot
// be emitted as identifiers.
func CheckOptions(opts Options) error {
	if err := checkQualified("source.schema", opts.SourceSchema); err != nil {
		return err
	}
	if err := checkQualified("source.schema", opts.Labels.Schema); err != nil {
		return err
	}
	if err := checkQualified("target.schema", opts.TargetSchema); err != nil {
		return err
	}
	if opts.ModelPrefix != "" {
		if err := checkIdent("target.table_prefix", opts.ModelPrefix); err != nil {
			return err
		}
	}
	if err := checkIdent("generation.label_suffix", "x_"+opts.Labels.Suffix); err != nil {
		return err
	}
	t := opts.Labels.Tables
	for _, f := range []struct{ field, value string }{
		{"source.properties.definitions", t.Definitions},
		{"source.properties.options", t.Options},
		{"source.properties.definition_id", t.DefinitionID},
		{"source.properties.option_parent_id", t.OptionParentID},
		{"source.properties.name", t.Name},
		{"source.properties.value", t.Value},
		{"source.properties.label", t.Label},
	} {
		if err := checkIdent(f.field, f.value); err != nil {
			return err
		}
	}
	return nil
}

func checkObject(object string, oc models.ObjectConfig) error {
	prefix := "objects." + object
	if err := checkIdent(prefix, object); err != nil {
		return err
	}
	if oc.Table != "" {
		if err := checkIdent(prefix+".table", oc.Table); err != nil {
			return err
		}
	}
	if oc.IdentityColumn != "" {
		if err := checkIdent(prefix+".identity_column", oc.IdentityColumn); err != nil {
			return err
		}
	}
	for i, c := range oc.Columns {
		field := fmt.Sprintf("%s.columns[%d]", prefix, i)
		if err := checkIdent(field+".name", c.Name); err != nil {
			return err
		}
		if c.Alias != "" {
			if err := checkIdent(field+".alias", c.Alias); err != nil {
				return err
			}
		}
	}
	return nil
}

// Describe is a one-line summary used in logs and the CLI.
func (r *Result) Describe() string {
	return fmt.Sprintf("%s <- %s (%s)", r.Model, r.Source, strings.Join(r.Columns, ", "))
}
