package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// subprocessRequest is written to the engine's stdin, one request per run.
type subprocessRequest struct {
	Text              string   `json:"text"`
	Language          string   `json:"language"`
	EnabledCategories []string `json:"enabledCategories,omitempty"`
	DisabledRules     []string `json:"disabledRules,omitempty"`
}

// Subprocess runs a local engine per check. The engine reads a JSON request
// on stdin and answers with a LanguageTool-shaped JSON document on stdout.
type Subprocess struct {
	argv  []string
	unit  Unit
	stats *Stats
}

// NewSubprocess parses command into argv. unit is the offset unit the
// engine reports in.
func NewSubprocess(command string, unit Unit, stats *Stats) (*Subprocess, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty checker command")
	}
	return &Subprocess{argv: argv, unit: unit, stats: stats}, nil
}

func (s *Subprocess) Check(ctx context.Context, text string, opts Options) ([]Finding, error) {
	req, err := json.Marshal(subprocessRequest{
		Text:              text,
		Language:          opts.Locale,
		EnabledCategories: opts.EnabledCategories,
		DisabledRules:     opts.DisabledRules,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = bytes.NewReader(req)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, Classify(ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s exited %d: %s", ErrUnavailable, s.argv[0], exitErr.ExitCode(), truncate(strings.TrimSpace(stderr.String()), 200))
		}
		return nil, fmt.Errorf("%w: run %s: %w", ErrUnavailable, s.argv[0], err)
	}
	if s.stats != nil {
		s.stats.Record(time.Since(start).Milliseconds())
	}
	return decodeMatches(text, stdout.Bytes(), s.unit)
}
