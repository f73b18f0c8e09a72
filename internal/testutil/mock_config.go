package testutil

import "hubstage/pkg/models"

// SampleConfig returns a configuration pointing at the CRM fixture tables
// created by SeedCRM in the sqlite "main" schema.
func SampleConfig() *models.Config {
	cfg := &models.Config{
		Warehouse: models.Warehouse{
			Dialect: "sqlite",
			DSN:     ":memory:",
		},
		Source: models.Source{
			Schema: "main",
		},
		Target: models.Target{
			Schema: "main",
		},
		Objects: map[string]models.ObjectConfig{
			"companies": {
				IdentityColumn: "id",
				Columns: []models.ColumnSpec{
					{Name: "name"},
					{Name: "industry", AddPropertyLabel: true},
				},
			},
			"contacts": {
				IdentityColumn: "id",
				Columns: []models.ColumnSpec{
					{Name: "email"},
					{Name: "property_lifecyclestage", Alias: "lifecycle_stage", AddPropertyLabel: true},
				},
			},
			"deals": {
				IdentityColumn: "id",
				Columns: []models.ColumnSpec{
					{Name: "dealname", Alias: "deal_name"},
					{Name: "amount"},
					{Name: "dealtype", AddPropertyLabel: true},
				},
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}
