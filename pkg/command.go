package calib

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command is one invocation of an external program.
type Command struct {
	Dir  string
	Name string
	Args []string
}

// String renders the command as the equivalent shell line.
func (c Command) String() string {
	line := strings.Join(append([]string{c.Name}, c.Args...), " ")
	if c.Dir != "" {
		return fmt.Sprintf("cd %s && %s", c.Dir, line)
	}
	return line
}

// Runner executes external programs.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec, forwarding their output.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("error running %q: %w", c.String(), err)
	}
	return nil
}

// JoinCommands renders a chain of commands the way a shell "&&" list reads.
func JoinCommands(cmds []Command) string {
	lines := make([]string, len(cmds))
	for i, cmd := range cmds {
		lines[i] = cmd.String()
	}
	return strings.Join(lines, " && ")
}

// Execute prints and/or runs cmds according to config. Execution stops at
// the first failing command.
func Execute(ctx context.Context, config CommandConfig, label string, cmds []Command, runner Runner) error {
	if config.Print {
		logger.Info(fmt.Sprintf("%s:\n %s", label, JoinCommands(cmds)), "command")
	}
	if !config.Run {
		return nil
	}
	for _, cmd := range cmds {
		if err := runner.Run(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}
