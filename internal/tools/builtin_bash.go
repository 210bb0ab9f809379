package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"

	"github.com/nextlevelbuilder/agentrun/internal/security"
)

const bashTailBytes = 4000

// BashConfig carries the per-registration settings a bash tool needs beyond
// what's threaded through context: the allowed environment passthrough and
// any caller-supplied extra deny patterns.
type BashConfig struct {
	AllowedEnvKeys []string
	ExtraDenyRegex []*regexp.Regexp
	TempDir        string
}

func newBashTool(cfg BashConfig) *Tool {
	return &Tool{
		Name:           "bash",
		Description:    "Execute a shell command.",
		Category:       CategoryAdmin,
		TimeoutSeconds: 120,
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{"type": "string"},
			},
			"required":             []any{"command"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, args map[string]any) Result {
			return execBash(ctx, cfg, args)
		},
	}
}

func execBash(ctx context.Context, cfg BashConfig, args map[string]any) Result {
	command, _ := args["command"].(string)

	if blocked := security.IsBlockedCommand(command, cfg.ExtraDenyRegex); blocked.Blocked {
		return Error("Command blocked: " + blocked.Reason)
	}

	cwd := WorkspaceFromContext(ctx)
	cb := StreamCallbackFromContext(ctx)

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if cwd != "" {
		cmd.Dir = cwd
	}
	cmd.Env = security.BuildToolEnv(cfg.AllowedEnvKeys, nil)

	var out bytes.Buffer
	writer := &streamingWriter{buf: &out, cb: cb}
	cmd.Stdout = writer
	cmd.Stderr = writer

	err := cmd.Run()
	output := out.String()

	if err != nil {
		if ctx.Err() != nil {
			return Error("Command timed out or was cancelled.\n" + output)
		}
		return Error(fmt.Sprintf("Command failed: %v\n%s", err, output))
	}

	if len(output) <= bashTailBytes {
		return Ok(output)
	}

	tmp, ferr := os.CreateTemp(cfg.TempDir, "bash-output-*.log")
	if ferr != nil {
		return Ok(output[len(output)-bashTailBytes:])
	}
	defer tmp.Close()
	_, _ = tmp.WriteString(output)
	tail := output[len(output)-bashTailBytes:]
	return Ok(fmt.Sprintf("[output truncated: showing tail]\nFull output: %s\n\n%s", tmp.Name(), tail))
}

// streamingWriter fans every write into the captured buffer and, when
// present, an optional streaming callback — the capability the spec
// reserves without mandating a transport (Open Question 3).
type streamingWriter struct {
	buf *bytes.Buffer
	cb  StreamCallback
}

func (w *streamingWriter) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	if w.cb != nil {
		w.cb(string(p))
	}
	return n, err
}
