// Package pipeline runs check cycles: linearize, diff against the segment
// cache, dispatch misses to the checker, back-map and merge.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/prosecheck/internal/backmap"
	"github.com/dgallion1/prosecheck/internal/cache"
	"github.com/dgallion1/prosecheck/internal/checker"
	"github.com/dgallion1/prosecheck/internal/doctree"
	"github.com/dgallion1/prosecheck/internal/linearize"
	"github.com/dgallion1/prosecheck/internal/parser"
)

// Config controls dispatch to the checker.
type Config struct {
	Concurrency  int
	Timeout      time.Duration // per checker call
	Retries      int
	Options      checker.Options
	AllowedWords []string
}

// Stats summarises one cycle.
type Stats struct {
	Segments int `json:"segments"`
	Cached   int `json:"cached"`
	Checked  int `json:"checked"`
	Failed   int `json:"failed"`
	Dropped  int `json:"dropped"`
}

// Result is the outcome of one check cycle.
type Result struct {
	DocID       string               `json:"doc_id,omitempty"`
	Diagnostics []backmap.Diagnostic `json:"diagnostics"`
	Generation  cache.Generation     `json:"generation"`
	Stats       Stats                `json:"stats"`
	Duration    time.Duration        `json:"-"`
}

// Orchestrator runs check cycles. It holds no per-document state and may be
// shared by concurrent cycles over different caches.
type Orchestrator struct {
	checker checker.Checker
	lin     *linearize.Linearizer
	cfg     Config
	stats   *checker.Stats
	allowed map[string]bool
	log     *slog.Logger
}

// NewOrchestrator wraps c with retries when cfg.Retries > 1. stats may be
// nil.
func NewOrchestrator(c checker.Checker, policy linearize.Policy, cfg Config, stats *checker.Stats, log *slog.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries > 1 {
		c = &checker.Retrying{Checker: c, Retries: cfg.Retries, Log: log}
	}
	allowed := make(map[string]bool, len(cfg.AllowedWords))
	for _, w := range cfg.AllowedWords {
		allowed[strings.ToLower(w)] = true
	}
	return &Orchestrator{
		checker: c,
		lin:     linearize.New(policy, cfg.Options.Fingerprint()),
		cfg:     cfg,
		stats:   stats,
		allowed: allowed,
		log:     log,
	}
}

// CacheKey identifies the configuration cached findings depend on.
func (o *Orchestrator) CacheKey() string {
	return o.lin.Policy().Fingerprint() + "|" + o.cfg.Options.Fingerprint()
}

// CheckSource parses content and checks it. A syntax error yields a single
// diagnostic and no error; other parse failures are returned.
func (o *Orchestrator) CheckSource(ctx context.Context, filename string, content []byte, c *cache.Cache) (*Result, error) {
	tree, err := parser.Parse(filename, content)
	if err != nil {
		var syn *parser.SyntaxError
		if errors.As(err, &syn) {
			o.log.Info("document has syntax error", "doc", filename, "error", err)
			src := doctree.NewSource(filename, content)
			return &Result{
				Diagnostics: []backmap.Diagnostic{backmap.FromSyntaxError(src, syn)},
				Generation:  c.Current(),
			}, nil
		}
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return o.Check(ctx, tree, c)
}

type outcome struct {
	findings []checker.Finding
	err      error
}

// Check runs one cycle over tree against c. It returns an error only when
// ctx ends before dispatch completes; nothing is committed in that case.
func (o *Orchestrator) Check(ctx context.Context, tree *doctree.Tree, c *cache.Cache) (*Result, error) {
	start := time.Now()
	gen := c.Begin()
	log := o.log.With("doc", tree.Source.Name, "generation", gen)

	segs := o.lin.Linearize(tree)
	toCheck, cached := c.Diff(segs)

	// One slot per dispatched segment, filled in any completion order.
	results := make([]outcome, len(toCheck))
	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, seg := range toCheck {
		g.Go(func() error {
			results[i] = o.dispatch(ctx, seg)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		log.Info("check cycle cancelled", "error", err)
		return nil, err
	}

	res := &Result{Generation: gen}
	res.Stats.Segments = len(segs)
	res.Stats.Cached = len(cached)

	fresh := make(map[string][]checker.Finding, len(toCheck))
	for i, seg := range toCheck {
		r := results[i]
		if r.err != nil {
			res.Stats.Failed++
			if o.stats != nil {
				o.stats.RecordFailure(r.err)
			}
			log.Warn("segment check failed", "segment", seg.Index, "kind", checker.Kind(r.err), "error", r.err)
			if e, ok := c.Lookup(seg.ID); ok && e.Validate() == nil {
				fresh[seg.ID] = e.Findings
			}
			continue
		}
		res.Stats.Checked++
		fresh[seg.ID] = r.findings
		if !c.Commit(gen, seg, r.findings) {
			log.Debug("generation superseded, result not committed", "segment", seg.Index)
		}
	}
	for id := range cached {
		c.Touch(gen, id)
	}

	mapper := backmap.New(tree.Source, log)
	var diags []backmap.Diagnostic
	total := 0
	for _, seg := range segs {
		findings, ok := fresh[seg.ID]
		if !ok {
			findings = cached[seg.ID]
		}
		findings = o.filterAllowed(seg, findings)
		total += len(findings)
		diags = append(diags, mapper.Map(seg, findings)...)
	}
	res.Diagnostics = backmap.Finalize(diags)
	if res.Diagnostics == nil {
		res.Diagnostics = []backmap.Diagnostic{}
	}
	res.Stats.Dropped = total - len(res.Diagnostics)

	// A cycle with failures also keeps what the previous cycle used, so a
	// failed segment's predecessor survives one revert.
	live := make(map[string]bool, len(segs))
	for _, seg := range segs {
		live[seg.ID] = true
	}
	since := gen + 1
	if res.Stats.Failed > 0 {
		since = gen - 1
	}
	if n := c.PruneStale(gen, live, since); n > 0 {
		log.Debug("pruned cache entries", "count", n)
	}

	res.Duration = time.Since(start)
	log.Info("check cycle complete",
		"segments", res.Stats.Segments,
		"cached", res.Stats.Cached,
		"checked", res.Stats.Checked,
		"failed", res.Stats.Failed,
		"diagnostics", len(res.Diagnostics),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// dispatch checks one segment. It returns by the deadline even when the
// checker ignores its context; a late reply is discarded.
func (o *Orchestrator) dispatch(ctx context.Context, seg linearize.Segment) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: err}
	}
	dctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	reply := make(chan outcome, 1)
	go func() {
		findings, err := o.checker.Check(dctx, seg.Text, o.cfg.Options)
		reply <- outcome{findings: findings, err: err}
	}()

	select {
	case r := <-reply:
		if r.err != nil {
			return outcome{err: checker.Classify(r.err)}
		}
		findings := make([]checker.Finding, len(r.findings))
		for i, f := range r.findings {
			f.SegmentID = seg.ID
			findings[i] = f
		}
		return outcome{findings: findings}
	case <-dctx.Done():
		return outcome{err: checker.Classify(dctx.Err())}
	}
}

// filterAllowed drops spelling findings whose flagged word is allowed.
func (o *Orchestrator) filterAllowed(seg linearize.Segment, findings []checker.Finding) []checker.Finding {
	if len(o.allowed) == 0 {
		return findings
	}
	out := make([]checker.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Category == checker.CategoryTypos && f.Start >= 0 && f.Start <= f.End && f.End <= len(seg.Text) {
			if o.allowed[strings.ToLower(seg.Text[f.Start:f.End])] {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}
