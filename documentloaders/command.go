package documentloaders

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sevigo/docsum/parsers/text"
	"github.com/sevigo/docsum/schema"
)

// CommandLoader runs a command and uses its stdout as the document content.
// Output is decoded like a plain text file.
type CommandLoader struct {
	Command string
	Args    []string
	opts    options
}

var _ Loader = (*CommandLoader)(nil)

func NewCommandLoader(command string, args []string, opts ...Option) *CommandLoader {
	return &CommandLoader{Command: command, Args: args, opts: applyOptions(opts...)}
}

func (l *CommandLoader) Load(ctx context.Context) ([]schema.Document, error) {
	if l.Command == "" {
		return nil, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, l.Command, l.Args...)
	output, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("command '%s' failed: %w\nstderr: %s", l.Command, err, string(ee.Stderr))
		}
		return nil, fmt.Errorf("command '%s' failed: %w", l.Command, err)
	}

	content, enc, err := text.Decode(output)
	l.opts.metrics.RecordExtraction("command", err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schema.ErrExtractionFailed, err)
	}

	l.opts.logger.DebugContext(ctx, "Command output loaded",
		"component", "document_loader",
		"command", l.Command,
		"bytes", len(output),
		"encoding", enc)

	name := strings.TrimSpace(strings.Join(append([]string{l.Command}, l.Args...), " "))
	doc := schema.NewDocument(content, map[string]any{
		schema.MetadataSource:    fmt.Sprintf("output of command '%s'", name),
		schema.MetadataFileName:  name,
		schema.MetadataSizeBytes: int64(len(output)),
		schema.MetadataMediaType: text.MediaType,
		schema.MetadataExtractor: "command",
	})
	return []schema.Document{doc}, nil
}
