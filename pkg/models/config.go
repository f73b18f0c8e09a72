package models

import "time"

type Config struct {
	Warehouse  Warehouse               `yaml:"warehouse" mapstructure:"warehouse"`
	Source     Source                  `yaml:"source" mapstructure:"source"`
	Target     Target                  `yaml:"target" mapstructure:"target"`
	Generation Generation              `yaml:"generation" mapstructure:"generation"`
	Objects    map[string]ObjectConfig `yaml:"objects" mapstructure:"objects"`
	Logging    Logging                 `yaml:"logging" mapstructure:"logging"`
}

// Warehouse describes the database holding the raw CRM tables.
type Warehouse struct {
	Dialect             string        `yaml:"dialect" mapstructure:"dialect"` // snowflake, postgres, mysql, sqlite
	DSN                 string        `yaml:"dsn,omitempty" mapstructure:"dsn"`
	Account             string        `yaml:"account,omitempty" mapstructure:"account"`
	Username            string        `yaml:"username,omitempty" mapstructure:"username"`
	Password            string        `yaml:"password,omitempty" mapstructure:"password"`
	PasswordFromKeyring bool          `yaml:"password_from_keyring,omitempty" mapstructure:"password_from_keyring"`
	Role                string        `yaml:"role,omitempty" mapstructure:"role"`
	Warehouse           string        `yaml:"warehouse,omitempty" mapstructure:"warehouse"`
	Database            string        `yaml:"database,omitempty" mapstructure:"database"`
	Timeout             time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// Source names the schema the loader writes into and its property reference tables.
type Source struct {
	Schema         string         `yaml:"schema" mapstructure:"schema"`
	PropertyPrefix string         `yaml:"property_prefix" mapstructure:"property_prefix"`
	Properties     PropertyTables `yaml:"properties" mapstructure:"properties"`
}

// PropertyTables describes the property definition table and its option child table.
type PropertyTables struct {
	Definitions    string `yaml:"definitions" mapstructure:"definitions"`
	Options        string `yaml:"options" mapstructure:"options"`
	DefinitionID   string `yaml:"definition_id" mapstructure:"definition_id"`
	OptionParentID string `yaml:"option_parent_id" mapstructure:"option_parent_id"`
	Name           string `yaml:"name" mapstructure:"name"`
	Value          string `yaml:"value" mapstructure:"value"`
	Label          string `yaml:"label" mapstructure:"label"`
}

type Target struct {
	Schema      string `yaml:"schema" mapstructure:"schema"`
	TablePrefix string `yaml:"table_prefix" mapstructure:"table_prefix"`
}

type Generation struct {
	Parallelism int    `yaml:"parallelism" mapstructure:"parallelism"`
	LabelSuffix string `yaml:"label_suffix" mapstructure:"label_suffix"`
	OutputDir   string `yaml:"output_dir" mapstructure:"output_dir"`
}

// ObjectConfig is the staging configuration of one CRM object type.
type ObjectConfig struct {
	Table          string       `yaml:"table,omitempty" mapstructure:"table"`                     // defaults to the object name
	IdentityColumn string       `yaml:"identity_column,omitempty" mapstructure:"identity_column"` // projected first when set
	Columns        []ColumnSpec `yaml:"columns" mapstructure:"columns"`
}

// ColumnSpec selects one raw column, optionally renamed and label-resolved.
type ColumnSpec struct {
	Name             string `yaml:"name" mapstructure:"name"`
	Alias            string `yaml:"alias,omitempty" mapstructure:"alias"`
	AddPropertyLabel bool   `yaml:"add_property_label,omitempty" mapstructure:"add_property_label"`
}

// OutputName returns the alias, falling back to the column name.
func (c ColumnSpec) OutputName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

type Logging struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Encoding   string `yaml:"encoding" mapstructure:"encoding"`
	File       string `yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups,omitempty" mapstructure:"max_backups"`
}

// DefaultPropertyTables matches the parent/child layout the loader writes
// for the CRM properties resource.
func DefaultPropertyTables() PropertyTables {
	return PropertyTables{
		Definitions:    "properties",
		Options:        "properties__options",
		DefinitionID:   "_dlt_id",
		OptionParentID: "_dlt_parent_id",
		Name:           "name",
		Value:          "value",
		Label:          "label",
	}
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Warehouse.Dialect == "" {
		c.Warehouse.Dialect = "snowflake"
	}
	if c.Warehouse.Timeout == 0 {
		c.Warehouse.Timeout = 30 * time.Second
	}
	if c.Source.PropertyPrefix == "" {
		c.Source.PropertyPrefix = "property_"
	}

	d := DefaultPropertyTables()
	p := &c.Source.Properties
	for _, f := range []struct {
		dst *string
		def string
	}{
		{&p.Definitions, d.Definitions},
		{&p.Options, d.Options},
		{&p.DefinitionID, d.DefinitionID},
		{&p.OptionParentID, d.OptionParentID},
		{&p.Name, d.Name},
		{&p.Value, d.Value},
		{&p.Label, d.Label},
	} {
		if *f.dst == "" {
			*f.dst = f.def
		}
	}

	if c.Target.TablePrefix == "" {
		c.Target.TablePrefix = "stg_"
	}
	if c.Generation.Parallelism <= 0 {
		c.Generation.Parallelism = 4
	}
	if c.Generation.LabelSuffix == "" {
		c.Generation.LabelSuffix = "label"
	}
	if c.Generation.OutputDir == "" {
		c.Generation.OutputDir = "models"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "console"
	}
}
