package cmd

import (
	"context"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hubstage/internal/config"
	"hubstage/internal/observability"
	"hubstage/internal/schema"
	"hubstage/internal/transform"
	"hubstage/internal/ui"
	"hubstage/internal/warehouse"
	"hubstage/pkg/models"
)

// app holds what the commands share for one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	envFile string
	noColor bool

	out    io.Writer
	errOut io.Writer
	logger *observability.Logger

	confirm  func(message string) (bool, error)
	password func(message string) (string, error)
}

func newApp() *app {
	return &app{
		v:        config.NewViper(),
		out:      os.Stdout,
		errOut:   os.Stderr,
		logger:   observability.NewNopLogger(),
		confirm:  surveyConfirm,
		password: surveyPassword,
	}
}

// NewRootCommand builds the hubstage command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp())
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "hubstage",
		Short: "Generate staging SQL for CRM export tables",
		Long: `hubstage compiles staging models for the raw companies, contacts and deals
tables landed by a CRM loader: it keeps the configured columns, renames them,
and joins property option labels in as <alias>_label columns.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			a.errOut = cmd.ErrOrStderr()
			if a.noColor {
				ui.SetColor(false)
			}
			return config.LoadEnvFile(a.envFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default $HUBSTAGE_CONFIG, ./hubstage.yaml or ~/.hubstage/config.yaml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log encoding (console, json)")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	_ = a.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.encoding", flags.Lookup("log-format"))

	root.AddCommand(
		newGenerateCommand(a),
		newValidateCommand(a),
		newRunCommand(a),
		newInitCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	a := newApp()
	root := newRootCommand(a)
	if err := root.ExecuteContext(context.Background()); err != nil {
		ui.ShowError(os.Stderr, err)
		_ = a.logger.Sync()
		os.Exit(1)
	}
	_ = a.logger.Sync()
}

// loadConfig reads the configuration and sets up logging from it.
func (a *app) loadConfig() (*models.Config, error) {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return nil, err
	}
	a.logger = observability.FromSettings(cfg.Logging, a.errOut, Version)
	observability.SetDefaultLogger(a.logger)
	return cfg, nil
}

// connect opens the warehouse and the introspection service on top of it.
func (a *app) connect(ctx context.Context, cfg *models.Config) (*warehouse.Service, *schema.Service, error) {
	wh, err := warehouse.NewService(warehouse.ConfigFromModel(cfg.Warehouse, cfg.Source.Schema))
	if err != nil {
		return nil, nil, err
	}
	if err := wh.Connect(ctx); err != nil {
		return nil, nil, err
	}
	a.logger.InfoWithFields("Connected to warehouse", map[string]interface{}{
		"dialect": cfg.Warehouse.Dialect,
	})

	catalog, err := schema.NewService(wh, cfg.Warehouse.Dialect, transform.OptionsFromConfig(cfg))
	if err != nil {
		wh.Close()
		return nil, nil, err
	}
	return wh, catalog, nil
}

// addObjectFlag registers the repeatable --object selector.
func addObjectFlag(fs *pflag.FlagSet, target *[]string, usage string) {
	fs.StringSliceVarP(target, "object", "o", nil, usage+" (singular or plural, repeatable; default all configured)")
}

func surveyConfirm(message string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{Message: message, Default: false}
	err := survey.AskOne(prompt, &ok)
	return ok, err
}

func surveyPassword(message string) (string, error) {
	var password string
	prompt := &survey.Password{Message: message}
	err := survey.AskOne(prompt, &password)
	return password, err
}
