package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"hubstage/internal/pipeline"
	"hubstage/internal/ui"
	"hubstage/pkg/errors"
)

type validateFlags struct {
	objects []string
	strict  bool
}

func newValidateCommand(a *app) *cobra.Command {
	var f validateFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration against the warehouse",
		Long: `Generate every staging model against the live warehouse and check the
label-flagged columns against the property tables. Every finding is printed as
an advisory; with --strict any advisory fails the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, f)
		},
	}

	addObjectFlag(cmd.Flags(), &f.objects, "object types to validate")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "exit non-zero when any advisory is raised")
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, f validateFlags) error {
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

	runner := pipeline.NewRunner(cfg, catalog, pipeline.WithCatalog(catalog), pipeline.WithLogger(a.logger))
	report, err := runner.Run(ctx, pipeline.Options{
		Objects:  f.objects,
		Validate: true,
		Strict:   f.strict,
	})
	// A strict failure still carries a complete report.
	if err != nil && errors.GetErrorCode(err) != errors.ErrCodeAdvisories {
		return err
	}
	ui.RenderResults(a.out, report.Results)
	ui.ShowHeader(a.out, "Advisories")
	ui.RenderAdvisories(a.out, report.Advisories())
	if err != nil {
		return err
	}

	if n := len(report.Advisories()); n > 0 {
		ui.ShowWarning(a.out, fmt.Sprintf("%d advisories; rerun with --strict to fail on them", n))
	}
	return nil
}
