package builtin

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/skosovsky/glmtools"
)

// Shell returns get_shell, which runs a command with sh -c. Output is stdout, or stderr when
// the command exits non-zero.
func Shell(opts Options) (glmtools.Tool, error) {
	opts = opts.withDefaults()
	return glmtools.Describe("get_shell", "Use shell to run command",
		func(ctx context.Context, p glmtools.Params) (any, error) {
			query, err := p.String("query")
			if err != nil {
				return nil, err
			}
			var stdout, stderr bytes.Buffer
			cmd := exec.CommandContext(ctx, "sh", "-c", query)
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			if err := cmd.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) && ctx.Err() == nil {
					return stderr.String(), nil
				}
				return nil, err
			}
			return stdout.String(), nil
		},
		[]glmtools.ParamSpec{
			glmtools.Param[string]("query", "The command should run in Linux shell", true),
		},
		glmtools.WithDangerous(),
		glmtools.WithTimeout(opts.ShellTimeout),
		glmtools.WithTags("system"),
	)
}
