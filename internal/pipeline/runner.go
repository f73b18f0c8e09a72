package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hubstage/internal/observability"
	"hubstage/internal/transform"
	"hubstage/pkg/errors"
	"hubstage/pkg/models"
)

// Materializer replaces a warehouse table with the result of a query.
type Materializer interface {
	Materialize(ctx context.Context, table, query string) error
}

// Options selects what a run does.
type Options struct {
	// Objects restricts the run to these object types; empty means all configured.
	Objects []string
	// Validate checks label-flagged columns against live property data.
	Validate bool
	// Strict turns any advisory into a failed run. Nothing is materialized
	// when a strict run fails.
	Strict bool
	// Materialize creates the staging tables in the target schema.
	Materialize bool
}

// Report is the outcome of one run.
type Report struct {
	RunID        string
	Started      time.Time
	Duration     time.Duration
	Results      []*transform.Result
	Materialized []string
}

// Advisories flattens the advisories of every result in object order.
func (r *Report) Advisories() []transform.Advisory {
	var out []transform.Advisory
	for _, res := range r.Results {
		out = append(out, res.Advisories...)
	}
	return out
}

// Runner generates the staging models of every configured object type
type Runner struct {
	cfg          *models.Config
	source       ColumnSource
	catalog      transform.Catalog
	materializer Materializer
	logger       *observability.Logger
	metrics      *observability.MetricsRegistry
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithCatalog enables live property validation.
func WithCatalog(c transform.Catalog) RunnerOption {
	return func(r *Runner) { r.catalog = c }
}

// WithMaterializer enables table creation.
func WithMaterializer(m Materializer) RunnerOption {
	return func(r *Runner) { r.materializer = m }
}

func WithLogger(l *observability.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

func WithMetrics(m *observability.MetricsRegistry) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a runner reading table layouts from source
func NewRunner(cfg *models.Config, source ColumnSource, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:     cfg,
		source:  source,
		logger:  observability.GetLogger(),
		metrics: observability.NewMetricsRegistry("hubstage"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Metrics() *observability.MetricsRegistry { return r.metrics }

// Run builds every selected model concurrently and returns them in catalogue
// order. The report is returned alongside a strict-mode failure so callers
// can still show what was found.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{RunID: uuid.New().String(), Started: time.Now()}
	logger := r.logger.WithField("run_id", report.RunID)
	defer func() { report.Duration = time.Since(report.Started) }()

	objects, err := r.selectObjects(opts.Objects)
	if err != nil {
		return report, err
	}
	if opts.Validate && r.catalog == nil {
		return report, errors.New(errors.ErrCodeValidationFailed, "property validation needs a warehouse connection").
			WithSuggestions("Drop --offline to validate against the warehouse")
	}
	if opts.Materialize && r.materializer == nil {
		return report, errors.New(errors.ErrCodeConnectionFailed, "materialization needs a warehouse connection")
	}

	logger.InfoWithFields("Generating staging models", map[string]interface{}{
		"objects": objects,
		"strict":  opts.Strict,
	})

	report.Results = make([]*transform.Result, len(objects))
	genOpts := transform.OptionsFromConfig(r.cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism())
	for i, object := range objects {
		i, object := i, object
		g.Go(func() error {
			res, err := r.generate(gctx, object, genOpts, opts.Validate)
			if err != nil {
				return errors.GenerationError(object, err)
			}
			report.Results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.ErrorWithFields("Generation failed", map[string]interface{}{"error": err})
		return report, err
	}

	advs := report.Advisories()
	r.metrics.Counter("advisories").Add(float64(len(advs)))
	for _, a := range advs {
		logger.WarnWithFields(a.Message, map[string]interface{}{
			"object": a.Object,
			"column": a.Column,
			"kind":   string(a.Kind),
		})
	}
	if opts.Strict && len(advs) > 0 {
		return report, errors.New(errors.ErrCodeAdvisories,
			fmt.Sprintf("%d advisories raised in strict mode", len(advs))).
			WithSeverity(errors.SeverityWarning).
			WithContext("run_id", report.RunID)
	}

	if opts.Materialize {
		if err := r.materialize(ctx, report, genOpts.TargetSchema, logger); err != nil {
			return report, err
		}
	}

	logger.InfoWithFields("Run complete", map[string]interface{}{
		"models":     len(report.Results),
		"advisories": len(advs),
	})
	return report, nil
}

func (r *Runner) generate(ctx context.Context, object string, opts transform.Options, validate bool) (*transform.Result, error) {
	defer r.metrics.Timer("generate").Since(time.Now())
	logger := r.logger.WithField("object", object)

	oc := r.cfg.Objects[object]
	cols, err := r.source.Columns(ctx, opts.SourceSchema, transform.TableName(object, oc))
	if err != nil {
		return nil, err
	}

	res, err := transform.BuildModel(object, oc, cols, opts)
	if err != nil {
		return nil, err
	}

	if validate {
		advs, err := transform.ValidateProperties(ctx, r.catalog, object, oc, opts.Labels)
		if err != nil {
			return nil, err
		}
		res.Advisories = append(res.Advisories, advs...)
	}

	r.metrics.Counter("models_generated").Inc()
	logger.InfoWithFields("Generated staging model", map[string]interface{}{
		"model":   res.Model,
		"columns": len(res.Columns),
	})
	logger.DebugWithFields(res.Describe(), map[string]interface{}{"sql": res.SQL})
	return res, nil
}

func (r *Runner) materialize(ctx context.Context, report *Report, schema string, logger *observability.Logger) error {
	targets := make([]string, len(report.Results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism())
	for i, res := range report.Results {
		i, res := i, res
		g.Go(func() error {
			defer r.metrics.Timer("materialize").Since(time.Now())
			table := transform.Qualify(schema, res.Model)
			if err := r.materializer.Materialize(gctx, table, res.SQL); err != nil {
				return errors.Wrap(err, errors.GetErrorCode(err), fmt.Sprintf("Failed to create %s", table)).
					WithContext("object", res.Object)
			}
			r.metrics.Counter("models_materialized").Inc()
			logger.InfoWithFields("Materialized staging table", map[string]interface{}{
				"object": res.Object,
				"table":  table,
			})
			targets[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	report.Materialized = targets
	return nil
}

// selectObjects resolves the requested names (singular or plural) against the
// configuration and puts them in catalogue order.
func (r *Runner) selectObjects(requested []string) ([]string, error) {
	configured := make([]string, 0, len(r.cfg.Objects))
	for name := range r.cfg.Objects {
		configured = append(configured, name)
	}
	sort.Strings(configured)
	for _, name := range configured {
		if o, ok := transform.LookupObject(name); !ok || o.Name != name {
			return nil, unknownObject(name)
		}
	}

	if len(requested) > 0 {
		var picked []string
		for _, name := range requested {
			o, ok := transform.LookupObject(name)
			if !ok {
				return nil, unknownObject(name)
			}
			if _, ok := r.cfg.Objects[o.Name]; !ok {
				return nil, errors.New(errors.ErrCodeUnknownObject,
					fmt.Sprintf("object %q is not configured", o.Name)).
					WithSuggestions(fmt.Sprintf("Add objects.%s to the configuration", o.Name))
			}
			picked = append(picked, o.Name)
		}
		configured = dedupe(picked)
	}

	rank := map[string]int{}
	for i, o := range transform.ObjectTypes() {
		rank[o.Name] = i
	}
	sort.SliceStable(configured, func(i, j int) bool {
		return rank[configured[i]] < rank[configured[j]]
	})
	return configured, nil
}

func (r *Runner) parallelism() int {
	if r.cfg.Generation.Parallelism < 1 {
		return 1
	}
	return r.cfg.Generation.Parallelism
}

func unknownObject(name string) error {
	var known []string
	for _, o := range transform.ObjectTypes() {
		known = append(known, o.Name)
	}
	return errors.New(errors.ErrCodeUnknownObject, fmt.Sprintf("unknown object type %q", name)).
		WithSuggestions(fmt.Sprintf("Supported object types: %v", known))
}

func dedupe(names []string) []string {
	seen := map[string]bool{}
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
