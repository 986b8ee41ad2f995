// Package dbt runs the dbt CLI and parses its artifacts: compiling the
// modified models of a pull request and listing their downstream graph.
package dbt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes dbt commands in a project directory.
type Runner struct {
	dir    string
	logger *slog.Logger
}

// NewRunner creates a runner for the project at dir. An empty dir means
// the current working directory.
func NewRunner(dir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{dir: dir, logger: logger}
}

// run executes one dbt invocation and returns its stdout. dbt exits
// non-zero for model errors too, so stderr is included in the error.
func (r *Runner) run(ctx context.Context, args ...string) ([]byte, error) {
	r.logger.Debug("running dbt", slog.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, "dbt", args...)
	cmd.Dir = r.dir
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("dbt %s failed: %w: %s", args[0], err, stderr.String())
	}
	return out, nil
}

// CompileModels compiles every model modified relative to the deferred
// state, producing target/run_results.json.
func (r *Runner) CompileModels(ctx context.Context) error {
	r.logger.Info("compiling modified models")
	_, err := r.run(ctx, "compile", "-s", "state:modified,resource_type:model", "--favor-state")
	return err
}

// runResults is the slice of run_results.json the runner reads.
type runResults struct {
	Results []struct {
		UniqueID     string  `json:"unique_id"`
		RelationName *string `json:"relation_name"`
		CompiledCode string  `json:"compiled_code"`
	} `json:"results"`
}

// TargetCompiledCode reads the compiled SQL of every materialized model
// from target/run_results.json, keyed by unique ID. Results without a
// relation name (ephemeral models) are skipped.
func (r *Runner) TargetCompiledCode() (map[string]string, error) {
	r.logger.Info("parsing run_results for compiled code")

	path := filepath.Join(r.dir, "target", "run_results.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var results runResults
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	code := make(map[string]string)
	for _, result := range results.Results {
		if result.RelationName == nil {
			continue
		}
		code[result.UniqueID] = result.CompiledCode
		r.logger.Info("retrieved compiled code", slog.String("unique_id", result.UniqueID))
	}
	return code, nil
}

// DownstreamIDs lists every model reachable downstream of the modified
// set, excluding the modified models themselves. This is the candidate
// universe for exclusion.
func (r *Runner) DownstreamIDs(ctx context.Context, modifiedIDs []string) (map[string]struct{}, error) {
	out, err := r.run(ctx, "ls", "--resource-type", "model",
		"--select", "state:modified+", "--output", "json")
	if err != nil {
		return nil, err
	}
	return parseListOutput(out, modifiedIDs), nil
}

// parseListOutput extracts unique IDs from dbt ls JSON line output.
// dbt mixes log lines into stdout, so each line is trimmed to its
// outermost braces and lines that still fail to parse are skipped.
func parseListOutput(out []byte, modifiedIDs []string) map[string]struct{} {
	modified := make(map[string]struct{}, len(modifiedIDs))
	for _, id := range modifiedIDs {
		modified[id] = struct{}{}
	}

	ids := make(map[string]struct{})
	for _, line := range strings.Split(string(out), "\n") {
		start := strings.Index(line, "{")
		end := strings.LastIndex(line, "}")
		if start < 0 || end < start {
			continue
		}

		var entry struct {
			UniqueID string `json:"unique_id"`
		}
		if err := json.Unmarshal([]byte(line[start:end+1]), &entry); err != nil || entry.UniqueID == "" {
			continue
		}
		if _, isModified := modified[entry.UniqueID]; isModified {
			continue
		}
		ids[entry.UniqueID] = struct{}{}
	}
	return ids
}
