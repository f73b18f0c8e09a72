package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"hubstage/pkg/errors"
	"hubstage/pkg/models"
)

const (
	// EnvConfig points at an explicit config file.
	EnvConfig = "HUBSTAGE_CONFIG"
	// EnvPrefix is the prefix of every environment override.
	EnvPrefix = "HUBSTAGE"

	localConfigFile = "hubstage.yaml"
)

// envKeys are the settings that can be overridden from the environment,
// e.g. HUBSTAGE_WAREHOUSE_PASSWORD.
var envKeys = []string{
	"warehouse.dialect",
	"warehouse.dsn",
	"warehouse.account",
	"warehouse.username",
	"warehouse.password",
	"warehouse.role",
	"warehouse.warehouse",
	"warehouse.database",
	"warehouse.timeout",
	"source.schema",
	"source.property_prefix",
	"target.schema",
	"target.table_prefix",
	"generation.parallelism",
	"generation.output_dir",
	"logging.level",
	"logging.encoding",
	"logging.file",
}

func GetConfigPath() string {
	if configFile := os.Getenv(EnvConfig); configFile != "" {
		return filepath.Dir(configFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".hubstage")
}

// GetConfigFile resolves the config file: $HUBSTAGE_CONFIG, then
// ./hubstage.yaml, then ~/.hubstage/config.yaml.
func GetConfigFile() string {
	if configFile := os.Getenv(EnvConfig); configFile != "" {
		return filepath.Clean(configFile)
	}
	if _, err := os.Stat(localConfigFile); err == nil {
		return localConfigFile
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// NewViper returns a viper instance wired for hubstage env overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// LoadEnvFile loads a dotenv file into the process environment. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to load env file").
			WithContext("path", path)
	}
	return nil
}

// Load reads the config file at path (or the resolved default) through v,
// applies defaults, resolves the warehouse password and validates the result.
func Load(v *viper.Viper, path string) (*models.Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path == "" {
		path = GetConfigFile()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeConfigNotFound, "configuration file not found").
			WithContext("path", path).
			WithSuggestions(
				"Run 'hubstage init' to create a starter configuration",
				fmt.Sprintf("Point %s at an existing file", EnvConfig),
			)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read configuration").
			WithContext("path", path)
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration").
			WithContext("path", path)
	}
	cfg.ApplyDefaults()

	if err := ResolvePassword(&cfg.Warehouse); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *models.Config, path string) error {
	if path == "" {
		path = GetConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to create config directory")
	}

	// Keyring-backed passwords stay out of the file.
	out := *cfg
	if out.Warehouse.PasswordFromKeyring {
		out.Warehouse.Password = ""
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to write config file").
			WithContext("path", path)
	}
	return nil
}

func Exists(path string) bool {
	if path == "" {
		path = GetConfigFile()
	}
	_, err := os.Stat(path)
	return err == nil
}

// SupportedDialects lists the warehouse dialects with a registered driver.
var SupportedDialects = []string{"snowflake", "postgres", "mysql", "sqlite"}

// Validate checks the settings that cannot be defaulted.
func Validate(cfg *models.Config) error {
	var errs []error

	dialect := strings.ToLower(cfg.Warehouse.Dialect)
	supported := false
	for _, d := range SupportedDialects {
		if d == dialect {
			supported = true
		}
	}
	if !supported {
		errs = append(errs, errors.New(errors.ErrCodeUnsupportedDialect,
			fmt.Sprintf("unsupported warehouse dialect %q", cfg.Warehouse.Dialect)).
			WithContext("field", "warehouse.dialect").
			WithSuggestions("Use one of: "+strings.Join(SupportedDialects, ", ")))
	}

	if dialect == "snowflake" && cfg.Warehouse.DSN == "" {
		if cfg.Warehouse.Account == "" {
			errs = append(errs, missing("snowflake account is required", "warehouse.account"))
		}
		if cfg.Warehouse.Username == "" {
			errs = append(errs, missing("snowflake username is required", "warehouse.username"))
		}
	}
	if dialect != "snowflake" && supported && cfg.Warehouse.DSN == "" {
		errs = append(errs, missing("dsn is required for "+dialect, "warehouse.dsn"))
	}

	if len(cfg.Objects) == 0 {
		errs = append(errs, missing("no objects configured", "objects"))
	}
	if cfg.Generation.Parallelism < 1 {
		errs = append(errs, errors.ConfigError("parallelism must be at least 1", "generation.parallelism"))
	}

	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Wrap(stderrors.Join(errs...), errors.ErrCodeConfigInvalid,
		fmt.Sprintf("configuration has %d problems", len(errs)))
}

func missing(message, field string) *errors.AppError {
	err := errors.ConfigError(message, field)
	err.Code = errors.ErrCodeConfigMissing
	return err
}
