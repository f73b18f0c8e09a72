package transform

import "hubstage/pkg/models"

// ObjectType is a CRM object category with a raw table of its own.
type ObjectType struct {
	Name     string // plural; also the raw table name
	Singular string // name used by the CRM API
	// DefaultColumns are the properties the extractor loads when none are configured.
	DefaultColumns []string
}

var objectTypes = []ObjectType{
	{
		Name:     "companies",
		Singular: "company",
		DefaultColumns: []string{
			"createdate",
			"domain",
			"hs_lastmodifieddate",
			"hs_object_id",
			"name",
		},
	},
	{
		Name:     "contacts",
		Singular: "contact",
		DefaultColumns: []string{
			"createdate",
			"email",
			"firstname",
			"hs_object_id",
			"lastmodifieddate",
			"lastname",
		},
	},
	{
		Name:     "deals",
		Singular: "deal",
		DefaultColumns: []string{
			"amount",
			"closedate",
			"createdate",
			"dealname",
			"dealstage",
			"hs_lastmodifieddate",
			"hs_object_id",
			"pipeline",
		},
	},
}

// ObjectTypes returns the known object types in canonical order.
func ObjectTypes() []ObjectType {
	out := make([]ObjectType, len(objectTypes))
	copy(out, objectTypes)
	return out
}

// LookupObject finds an object type by plural or singular name.
func LookupObject(name string) (ObjectType, bool) {
	for _, o := range objectTypes {
		if o.Name == name || o.Singular == name {
			return o, true
		}
	}
	return ObjectType{}, false
}

// DefaultObjectConfig is the starter configuration for an object type: the
// identity column plus its default properties, none label-resolved.
func DefaultObjectConfig(o ObjectType) models.ObjectConfig {
	cols := make([]models.ColumnSpec, 0, len(o.DefaultColumns))
	for _, c := range o.DefaultColumns {
		cols = append(cols, models.ColumnSpec{Name: c})
	}
	return models.ObjectConfig{
		IdentityColumn: "id",
		Columns:        cols,
	}
}
