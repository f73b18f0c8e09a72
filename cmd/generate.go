package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"hubstage/internal/output"
	"hubstage/internal/pipeline"
	"hubstage/internal/ui"
	"hubstage/pkg/errors"
)

type generateFlags struct {
	objects     []string
	outDir      string
	offline     bool
	columnsFile string
}

func newGenerateCommand(a *app) *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write staging models as SQL files",
		Long: `Compile one staging model per configured object type and write it to
<out>/<model>.sql together with a manifest of fingerprints. Files whose SQL did
not change are left untouched.

Source columns are read from the warehouse, or with --offline from a YAML file
mapping raw table names to their columns.`,
		Example: `  hubstage generate
  hubstage generate --object deal --out models/staging
  hubstage generate --offline --columns-file columns.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, f)
		},
	}

	addObjectFlag(cmd.Flags(), &f.objects, "object types to generate")
	cmd.Flags().StringVar(&f.outDir, "out", "", "output directory (default generation.output_dir)")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "read source columns from --columns-file instead of the warehouse")
	cmd.Flags().StringVar(&f.columnsFile, "columns-file", "", "YAML file of raw table columns for --offline")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, f generateFlags) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var source pipeline.ColumnSource
	if f.offline {
		if f.columnsFile == "" {
			return errors.New(errors.ErrCodeConfigMissing, "--offline needs --columns-file").
				WithSuggestions("List the raw table columns in a YAML file, e.g. 'deals: [id, dealname, amount]'")
		}
		cols, err := pipeline.LoadColumnsFile(f.columnsFile)
		if err != nil {
			return err
		}
		source = cols
	} else {
		wh, catalog, err := a.connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer wh.Close()
		source = catalog
	}

	report, err := pipeline.NewRunner(cfg, source, pipeline.WithLogger(a.logger)).
		Run(ctx, pipeline.Options{Objects: f.objects})
	if err != nil {
		return err
	}

	dir := f.outDir
	if dir == "" {
		dir = cfg.Generation.OutputDir
	}
	files, err := output.NewWriter(dir).Write(report.RunID, report.Results)
	if err != nil {
		return err
	}

	ui.RenderFiles(a.out, files)
	if advs := report.Advisories(); len(advs) > 0 {
		ui.ShowHeader(a.out, "Advisories")
		ui.RenderAdvisories(a.out, advs)
		ui.ShowWarning(a.out, fmt.Sprintf("%d models written to %s with %d advisories", len(files), dir, len(advs)))
		return nil
	}
	ui.ShowSuccess(a.out, fmt.Sprintf("%d models written to %s", len(files), dir))
	return nil
}
