package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
	"github.com/oshokin/bundle-exporter/internal/logger"
)

// Placeholders understood in a command template.
const (
	placeholderPlatform = "{platform}"
	placeholderTarget   = "{target}"
	placeholderOutput   = "{output}"
	// placeholderInputs must be a whole argument; it expands to one argument per asset path.
	placeholderInputs = "{inputs}"
	// placeholderNames must be a whole argument; it expands to one argument per bundle member name.
	placeholderNames = "{names}"
)

// maxReportedOutput bounds the tool output attached to a build error.
const maxReportedOutput = 2048

var (
	errEmptyCommand  = errors.New("builder command is empty")
	errNoOutputFile  = errors.New("tool exited successfully but wrote no bundle")
	errToolExecution = errors.New("tool failed")
)

// CommandBuilder runs an external tool, typically the engine in batch mode.
type CommandBuilder struct {
	// template is the tokenised command line.
	template []string
	// targets maps platform names to the tool's target identifiers.
	targets map[string]string
}

// NewCommandBuilder parses command with shell quoting rules.
func NewCommandBuilder(command string, targets map[string]string) (*CommandBuilder, error) {
	template, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse builder command: %w", err)
	}

	if len(template) == 0 {
		return nil, errEmptyCommand
	}

	return &CommandBuilder{
		template: template,
		targets:  targets,
	}, nil
}

// BuildSingle runs the tool for one asset named after its logical name.
func (b *CommandBuilder) BuildSingle(
	ctx context.Context,
	asset bundle.Asset,
	outputPath string,
	platform bundle.Platform,
) error {
	return b.run(ctx, []bundle.Asset{asset}, []string{asset.LogicalName()}, outputPath, platform)
}

// BuildMerged runs the tool once for the whole asset set.
func (b *CommandBuilder) BuildMerged(
	ctx context.Context,
	assets []bundle.Asset,
	names []string,
	outputPath string,
	platform bundle.Platform,
) error {
	if len(assets) != len(names) {
		return fmt.Errorf("%w: %w", bundle.ErrBuildFailure, errNamesMismatch)
	}

	return b.run(ctx, assets, names, outputPath, platform)
}

// Args expands the template for one build.
func (b *CommandBuilder) Args(assets []bundle.Asset, names []string, outputPath string, platform bundle.Platform) []string {
	target, ok := b.targets[platform.Name]
	if !ok {
		target = platform.Name
	}

	replacer := strings.NewReplacer(
		placeholderPlatform, platform.Name,
		placeholderTarget, target,
		placeholderOutput, outputPath,
	)

	args := make([]string, 0, len(b.template)+len(assets)+len(names))

	for _, token := range b.template {
		switch token {
		case placeholderInputs:
			for _, asset := range assets {
				args = append(args, asset.Path)
			}
		case placeholderNames:
			args = append(args, names...)
		default:
			args = append(args, replacer.Replace(token))
		}
	}

	return args
}

func (b *CommandBuilder) run(
	ctx context.Context,
	assets []bundle.Asset,
	names []string,
	outputPath string,
	platform bundle.Platform,
) error {
	args := b.Args(assets, names, outputPath, platform)

	// A bundle left by an earlier run must not pass for this run's output.
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove previous %s: %w", bundle.ErrBuildFailure, outputPath, err)
	}

	logger.DebugKV(ctx, "Running builder command", "args", args)

	//nolint:gosec // The command line comes from the operator's own configuration.
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %w: %w: %s",
			bundle.ErrBuildFailure, args[0], errToolExecution, err, truncate(output))
	}

	if _, err = os.Stat(outputPath); err != nil {
		return fmt.Errorf("%w: %s: %w", bundle.ErrBuildFailure, outputPath, errNoOutputFile)
	}

	return nil
}

func truncate(output []byte) string {
	output = bytes.TrimSpace(output)
	if len(output) > maxReportedOutput {
		output = output[len(output)-maxReportedOutput:]
	}

	return string(output)
}
