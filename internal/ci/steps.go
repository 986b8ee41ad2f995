package ci

import (
	"fmt"
	"regexp"
	"strings"
)

// dbt invocations that accept node selection flags. Steps that do not
// match (shell commands, deps installs) are passed through unchanged.
var validCommandPattern = regexp.MustCompile(
	`\s*dbt\s+((` +
		strings.Join([]string{
			"--warn-error",
			"--use-experimental-parser",
			"--no-partial-parse",
			"--fail-fast",
		}, "|") +
		`)\s+)*(` +
		strings.Join([]string{
			"run",
			"test",
			"source",
			"compile",
			"ls",
			"list",
			`docs\s+generate`,
			"build",
			"clone",
		}, "|") +
		`)\s*.*`,
)

// isValidDbtCommand reports whether a job step is a dbt command that
// accepts an --exclude flag.
func isValidDbtCommand(step string) bool {
	loc := validCommandPattern.FindStringIndex(step)
	return loc != nil && loc[0] == 0
}

// modifyExecuteSteps appends the exclusion list to every dbt command in
// the job's execute steps.
func modifyExecuteSteps(steps, excluded []string) []string {
	exclusion := strings.Join(excluded, " ")
	modified := make([]string, 0, len(steps))
	for _, step := range steps {
		if isValidDbtCommand(step) {
			modified = append(modified, fmt.Sprintf("%s --exclude %s", step, exclusion))
		} else {
			modified = append(modified, step)
		}
	}
	return modified
}
