package cmd

import (
	"fmt"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

type qualityTask struct {
	use   string
	short string
	name  string
	run   func() error
}

var qualityTasks = []qualityTask{
	{use: "test", short: "Run unit tests", name: "tests", run: test.Test},
	{use: "lint", short: "Run linters", name: "linting", run: test.Lint},
	{use: "integration-test", short: "Run integration tests against attached hardware", name: "integration testing", run: test.Integ},
}

// QualityCmds returns the test, lint and integration-test commands.
func QualityCmds() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(qualityTasks))
	for _, task := range qualityTasks {
		task := task
		cmds = append(cmds, &cobra.Command{
			Use:   task.use,
			Short: task.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := task.run(); err != nil {
					return fmt.Errorf("failed to run %s: %w", task.name, err)
				}
				return nil
			},
		})
	}
	return cmds
}
