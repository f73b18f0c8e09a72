package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hubstage/internal/config"
	"hubstage/internal/transform"
	"hubstage/internal/ui"
	"hubstage/pkg/errors"
	"hubstage/pkg/models"
)

type initFlags struct {
	dialect       string
	dsn           string
	account       string
	username      string
	database      string
	sourceSchema  string
	targetSchema  string
	storePassword bool
	force         bool
}

func newInitCommand(a *app) *cobra.Command {
	var f initFlags

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration",
		Long: `Write a configuration file listing every supported object type with the
properties the CRM loader extracts by default. Edit the column lists afterwards
to add aliases and add_property_label flags.`,
		Example: `  hubstage init --dialect snowflake --account xy12345 --username loader --store-password
  hubstage init --dialect postgres --dsn postgres://loader@localhost/crm --source-schema hubspot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(f)
		},
	}

	cmd.Flags().StringVar(&f.dialect, "dialect", "snowflake", "warehouse dialect ("+strings.Join(config.SupportedDialects, ", ")+")")
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "warehouse connection string")
	cmd.Flags().StringVar(&f.account, "account", "", "snowflake account identifier")
	cmd.Flags().StringVar(&f.username, "username", "", "warehouse user")
	cmd.Flags().StringVar(&f.database, "database", "", "warehouse database")
	cmd.Flags().StringVar(&f.sourceSchema, "source-schema", "hubspot", "schema holding the raw CRM tables")
	cmd.Flags().StringVar(&f.targetSchema, "target-schema", "hubspot_staging", "schema receiving the staging tables")
	cmd.Flags().BoolVar(&f.storePassword, "store-password", false, "prompt for the warehouse password and keep it in the OS keyring")
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "overwrite an existing configuration without asking")
	return cmd
}

func (a *app) runInit(f initFlags) error {
	path := a.cfgFile
	if path == "" {
		path = config.GetConfigFile()
	}

	if config.Exists(path) && !f.force {
		overwrite, err := a.confirm(fmt.Sprintf("Configuration %s already exists. Overwrite?", path))
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "prompt failed")
		}
		if !overwrite {
			ui.ShowInfo(a.out, "Initialization cancelled")
			return nil
		}
	}

	cfg := starterConfig(f)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if f.storePassword {
		password, err := a.password(fmt.Sprintf("Password for %s", config.KeyringUser(cfg.Warehouse)))
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "prompt failed")
		}
		if err := config.StorePassword(cfg.Warehouse, password); err != nil {
			return err
		}
		cfg.Warehouse.PasswordFromKeyring = true
	}

	if err := config.Save(cfg, path); err != nil {
		return err
	}

	ui.ShowSuccess(a.out, "Configuration written to "+path)
	fmt.Fprintln(a.out, "\nNext steps:")
	fmt.Fprintln(a.out, "  1. Review the column lists under objects:")
	fmt.Fprintln(a.out, "  2. Run 'hubstage validate --strict' against the warehouse")
	fmt.Fprintln(a.out, "  3. Run 'hubstage generate' or 'hubstage run'")
	return nil
}

func starterConfig(f initFlags) *models.Config {
	cfg := &models.Config{
		Warehouse: models.Warehouse{
			Dialect:  strings.ToLower(f.dialect),
			DSN:      f.dsn,
			Account:  f.account,
			Username: f.username,
			Database: f.database,
		},
		Source:  models.Source{Schema: f.sourceSchema, Properties: models.DefaultPropertyTables()},
		Target:  models.Target{Schema: f.targetSchema},
		Objects: map[string]models.ObjectConfig{},
	}
	for _, o := range transform.ObjectTypes() {
		cfg.Objects[o.Name] = transform.DefaultObjectConfig(o)
	}
	cfg.ApplyDefaults()
	return cfg
}
