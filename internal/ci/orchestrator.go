// Package ci orchestrates one column-aware CI run: compile the modified
// models, analyze their changes, resolve the exclusion list, and trigger
// (or dry-run) the dbt Cloud job.
package ci

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/leapstack-labs/columnci/internal/analyze"
	"github.com/leapstack-labs/columnci/internal/dbt"
	"github.com/leapstack-labs/columnci/internal/dbtcloud"
	"github.com/leapstack-labs/columnci/internal/discovery"
	"github.com/leapstack-labs/columnci/internal/ghpr"
	"github.com/leapstack-labs/columnci/internal/lineage"
	"github.com/leapstack-labs/columnci/pkg/dialect"
)

// Config carries everything one CI run needs.
type Config struct {
	Host         string
	ServiceToken string
	AccountID    string
	ProjectID    string
	ProjectName  string
	TokenName    string
	TokenValue   string
	JobID        string

	// EnvironmentID of the deferring environment. Discovered from the
	// job definition when empty.
	EnvironmentID string

	Dialect    string
	ProjectDir string
	DryRun     bool

	// GitHub workflow context.
	GitBranch   string // GITHUB_HEAD_REF
	GitRef      string // GITHUB_REF
	GithubToken string
	Repository  string // GITHUB_REPOSITORY
}

// Orchestrator runs the CI flow end to end.
type Orchestrator struct {
	cfg     Config
	dialect *dialect.Dialect
	runner  *dbt.Runner
	lineage *lineage.Service
	cloud   *dbtcloud.Client
	logger  *slog.Logger
}

// New creates an orchestrator. The deferring environment ID is fetched
// from the job definition when the config does not carry one.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	// Every log line of one run carries the same correlation id.
	logger = logger.With(slog.String("run_id", uuid.NewString()))

	d, err := dialect.Get(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	cloud := dbtcloud.NewClient(cfg.Host, cfg.ServiceToken, logger)

	if cfg.EnvironmentID == "" {
		job, err := cloud.GetJob(ctx, cfg.AccountID, cfg.JobID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch CI job: %w", err)
		}
		if job.DeferringEnvironmentID == 0 {
			return nil, fmt.Errorf("job %s has no deferring environment", cfg.JobID)
		}
		cfg.EnvironmentID = strconv.FormatInt(job.DeferringEnvironmentID, 10)
		logger.Info("resolved deferring environment",
			slog.String("environment_id", cfg.EnvironmentID))
	}

	disco := discovery.NewClient(cfg.Host, cfg.ServiceToken, logger)

	return &Orchestrator{
		cfg:     cfg,
		dialect: d,
		runner:  dbt.NewRunner(cfg.ProjectDir, logger),
		lineage: lineage.New(disco, cfg.EnvironmentID, logger),
		cloud:   cloud,
		logger:  logger,
	}, nil
}

// Setup writes the dbt Cloud authentication profile.
func (o *Orchestrator) Setup() error {
	path, err := writeCloudProfile(o.cfg, "")
	if err != nil {
		return err
	}
	o.logger.Info("created dbt cloud profile", slog.String("path", path))
	return nil
}

// CompileAndCollect compiles the modified models and pairs each one's
// new compiled SQL with the version last run in the deferring
// environment. Models missing on either side are dropped: nothing to
// compare.
func (o *Orchestrator) CompileAndCollect(ctx context.Context) (map[string]analyze.ModelCode, error) {
	if err := o.runner.CompileModels(ctx); err != nil {
		return nil, err
	}

	targetCode, err := o.runner.TargetCompiledCode()
	if err != nil {
		return nil, err
	}
	if len(targetCode) == 0 {
		o.logger.Info("nothing found in the run_results file")
		return nil, nil
	}

	uniqueIDs := make([]string, 0, len(targetCode))
	for id := range targetCode {
		uniqueIDs = append(uniqueIDs, id)
	}

	sourceCode, err := o.lineage.CompiledCode(ctx, uniqueIDs)
	if err != nil {
		return nil, err
	}

	models := make(map[string]analyze.ModelCode)
	for id, target := range targetCode {
		source, ok := sourceCode[id]
		if !ok {
			continue
		}
		models[id] = analyze.ModelCode{SourceCode: source, TargetCode: target}
	}
	if len(models) == 0 {
		o.logger.Info("modified models were not found in the deferring environment; " +
			"they have most likely not been run there yet")
	}
	return models, nil
}

// ExcludedNodes analyzes the model pairs and resolves the downstream
// models that are safe to exclude from the build.
func (o *Orchestrator) ExcludedNodes(ctx context.Context, models map[string]analyze.ModelCode) ([]string, error) {
	nodes := analyze.BuildNodes(models, o.dialect, o.logger)

	modifiedIDs := make([]string, 0, len(nodes))
	for id := range nodes {
		modifiedIDs = append(modifiedIDs, id)
	}

	universe, err := o.runner.DownstreamIDs(ctx, modifiedIDs)
	if err != nil {
		return nil, err
	}

	manager := analyze.NewNodeManager(nodes, universe, o.lineage, o.logger)
	return manager.ExcludedNodes(ctx), nil
}

// TriggerAndCheck triggers the CI job with the exclusion list applied
// to its execute steps and waits for the run to finish. In dry-run mode
// it posts the would-be exclusions to the pull request instead.
func (o *Orchestrator) TriggerAndCheck(ctx context.Context, excluded []string) (bool, error) {
	if o.cfg.DryRun {
		return true, o.postDryRun(ctx, excluded)
	}

	prNumber, _ := ghpr.PRNumber(o.cfg.GitRef)
	payload := dbtcloud.TriggerPayload{
		Cause:               "Column-aware CI",
		SchemaOverride:      fmt.Sprintf("dbt_cloud_pr_%s_%d", o.cfg.JobID, prNumber),
		GitBranch:           o.cfg.GitBranch,
		GithubPullRequestID: prNumber,
	}

	if len(excluded) > 0 {
		job, err := o.cloud.GetJob(ctx, o.cfg.AccountID, o.cfg.JobID)
		if err != nil {
			return false, fmt.Errorf("failed to fetch job steps: %w", err)
		}
		payload.StepsOverride = modifyExecuteSteps(job.ExecuteSteps, excluded)
		o.logger.Info("adding node exclusions to job",
			slog.Int("excluded_count", len(excluded)))
	}

	run, err := o.cloud.TriggerJob(ctx, o.cfg.AccountID, o.cfg.JobID, payload)
	if err != nil {
		return false, err
	}
	run, err = o.cloud.WaitForRun(ctx, o.cfg.AccountID, run.ID)
	if err != nil {
		return false, err
	}
	return run.Status == dbtcloud.RunSuccess, nil
}

// postDryRun logs the would-be exclusions and posts them to the pull
// request when the workflow context allows it.
func (o *Orchestrator) postDryRun(ctx context.Context, excluded []string) error {
	message := ghpr.DryRunMessage(excluded)
	o.logger.Info(message)

	poster, ok := ghpr.NewPoster(o.cfg.GithubToken, o.cfg.Repository, o.cfg.GitRef, o.logger)
	if !ok {
		o.logger.Warn("missing github workflow context, skipping PR comment")
		return nil
	}
	if err := poster.Comment(ctx, message); err != nil {
		o.logger.Error("failed to post dry run message", slog.Any("error", err))
	}
	return nil
}

// Run executes the whole flow: setup, compile, analyze, trigger. Models
// with nothing to compare still trigger the job, with no exclusions.
func (o *Orchestrator) Run(ctx context.Context) bool {
	if err := o.Setup(); err != nil {
		o.logger.Error("setup failed", slog.Any("error", err))
		return false
	}

	models, err := o.CompileAndCollect(ctx)
	if err != nil {
		o.logger.Error("compilation failed", slog.Any("error", err))
		return false
	}
	if len(models) == 0 {
		ok, err := o.TriggerAndCheck(ctx, nil)
		if err != nil {
			o.logger.Error("job trigger failed", slog.Any("error", err))
			return false
		}
		return ok
	}

	excluded, err := o.ExcludedNodes(ctx, models)
	if err != nil {
		o.logger.Error("exclusion analysis failed", slog.Any("error", err))
		return false
	}

	ok, err := o.TriggerAndCheck(ctx, excluded)
	if err != nil {
		o.logger.Error("job trigger failed", slog.Any("error", err))
		return false
	}
	return ok
}
