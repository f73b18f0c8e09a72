package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hubstage/internal/pipeline"
	"hubstage/internal/ui"
	"hubstage/pkg/errors"
)

type runFlags struct {
	objects     []string
	validate    bool
	strict      bool
	postSQL     string
	metricsFile string
}

func newRunCommand(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate and create the staging tables",
		Long: `Generate every staging model against the live warehouse and replace the
<target.schema>.<table_prefix><object> tables with their results.

With --strict nothing is created when any advisory is raised. --post-sql runs a
file of statements (grants, comments) in one transaction once every table is
created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRun(cmd, f)
		},
	}

	addObjectFlag(cmd.Flags(), &f.objects, "object types to build")
	cmd.Flags().BoolVar(&f.validate, "validate", true, "check label-flagged columns against the property tables")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "create nothing when any advisory is raised")
	cmd.Flags().StringVar(&f.postSQL, "post-sql", "", "SQL file executed after the tables are created")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	return cmd
}

func (a *app) runRun(cmd *cobra.Command, f runFlags) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	wh, catalog, err := a.connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	opts := []pipeline.RunnerOption{pipeline.WithMaterializer(wh), pipeline.WithLogger(a.logger)}
	if f.validate {
		opts = append(opts, pipeline.WithCatalog(catalog))
	}

	var postSQL string
	if f.postSQL != "" {
		data, err := os.ReadFile(f.postSQL) // #nosec G304 - path comes from the command line
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeFileNotFound, "failed to read post-sql file").
				WithContext("path", f.postSQL)
		}
		postSQL = string(data)
	}

	runner := pipeline.NewRunner(cfg, catalog, opts...)
	report, err := runner.Run(ctx, pipeline.Options{
		Objects:     f.objects,
		Validate:    f.validate,
		Strict:      f.strict,
		Materialize: true,
	})
	if err != nil {
		if errors.GetErrorCode(err) == errors.ErrCodeAdvisories {
			ui.RenderAdvisories(a.out, report.Advisories())
		}
		return err
	}

	for _, table := range report.Materialized {
		ui.ShowSuccess(a.out, "Created "+table)
	}
	if postSQL != "" {
		if err := wh.ExecuteSQL(ctx, postSQL); err != nil {
			return err
		}
		ui.ShowSuccess(a.out, "Applied "+f.postSQL)
	}

	a.logger.InfoWithFields("Run metrics", runner.Metrics().Fields())
	if f.metricsFile != "" {
		if err := os.WriteFile(f.metricsFile, []byte(runner.Metrics().Export()), 0644); err != nil {
			return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to write metrics file").
				WithContext("path", f.metricsFile)
		}
	}
	if advs := report.Advisories(); len(advs) > 0 {
		ui.ShowHeader(a.out, "Advisories")
		ui.RenderAdvisories(a.out, advs)
	}
	ui.ShowInfo(a.out, fmt.Sprintf("Run %s finished in %s", report.RunID, report.Duration.Round(time.Millisecond)))
	return nil
}
