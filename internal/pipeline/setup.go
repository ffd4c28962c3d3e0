package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/prosecheck/internal/checker"
	"github.com/dgallion1/prosecheck/internal/config"
)

// NewChecker builds the checker transport selected by cfg.
func NewChecker(cfg config.Config, stats *checker.Stats) (checker.Checker, error) {
	backend, err := cfg.Backend()
	if err != nil {
		return nil, err
	}
	switch backend {
	case config.BackendRemote:
		return checker.NewRemote(cfg.CheckerURL, cfg.CheckerTimeout, stats), nil
	case config.BackendSubprocess:
		return checker.NewSubprocess(cfg.CheckerCommand, checker.UnitUTF16, stats)
	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}
}

// FromConfig builds an orchestrator and its checker stats from cfg and the
// policy file it names.
func FromConfig(cfg config.Config, log *slog.Logger) (*Orchestrator, *checker.Stats, error) {
	policy, err := cfg.LoadPolicy()
	if err != nil {
		return nil, nil, err
	}
	stats := checker.NewStats(time.Hour)
	c, err := NewChecker(cfg, stats)
	if err != nil {
		return nil, nil, err
	}
	orch := NewOrchestrator(c, policy.Linearize, Config{
		Concurrency:  cfg.CheckerConcurrency,
		Timeout:      cfg.CheckerTimeout,
		Retries:      cfg.CheckerRetries,
		Options:      policy.Options,
		AllowedWords: policy.AllowedWords,
	}, stats, log)
	return orch, stats, nil
}
