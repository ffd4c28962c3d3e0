package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/prosecheck/internal/backmap"
	"github.com/dgallion1/prosecheck/internal/cache"
	"github.com/dgallion1/prosecheck/internal/config"
	"github.com/dgallion1/prosecheck/internal/doctree"
	"github.com/dgallion1/prosecheck/internal/pipeline"
	"github.com/dgallion1/prosecheck/internal/render"
)

// errProblemsFound makes the process exit non-zero without printing an
// error of its own.
var errProblemsFound = errors.New("problems found")

var checkCmd = &cobra.Command{
	Use:   "check [flags] <file>...",
	Short: "Check the prose of one or more files",
	Long:  `Check Markdown, HTML and plain text files. Exits with status 1 when any diagnostic is reported.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	checkCmd.Flags().String("cache", "", "directory for cached findings (default $CACHE_DIR)")
	checkCmd.Flags().Bool("no-cache", false, "do not read or write cached findings")
	checkCmd.Flags().String("url", "", "LanguageTool server URL (overrides CHECKER_URL)")
	checkCmd.Flags().String("locale", "", "checker locale (overrides CHECKER_LOCALE)")
	checkCmd.Flags().Int("context", 0, "source lines shown above each finding")
	checkCmd.Flags().Bool("suggest", true, "show suggested replacements")
}

func runCheck(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	format, _ := flags.GetString("format")
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}
	colorFlag, _ := cmd.Root().PersistentFlags().GetString("color")
	useColor, err := colorMode(colorFlag)
	if err != nil {
		return err
	}
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Load()
	if url, _ := flags.GetString("url"); url != "" {
		cfg.CheckerBackend = config.BackendRemote
		cfg.CheckerURL = url
	}
	if locale, _ := flags.GetString("locale"); locale != "" {
		cfg.CheckerLocale = locale
	}
	if dir, _ := flags.GetString("cache"); dir != "" {
		cfg.CacheDir = dir
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		cfg.CacheDir = ""
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	orch, _, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	contextLines, _ := flags.GetInt("context")
	suggest, _ := flags.GetBool("suggest")
	opts := render.PrettyOpts{Color: useColor, Context: contextLines, ShowReplacements: suggest}

	var (
		all     []backmap.Diagnostic
		results []render.FileResult
		failed  bool
	)
	for _, path := range args {
		src, res, err := checkFile(ctx, orch, cfg.CacheDir, path, log)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed = true
			results = append(results, render.FileResult{Path: path, Error: err.Error()})
			if format == "pretty" {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			}
			continue
		}
		all = append(all, res.Diagnostics...)
		results = append(results, render.FileResult{Path: path, Diagnostics: res.Diagnostics})
		if format == "pretty" {
			render.Pretty(os.Stdout, src, res.Diagnostics, opts)
		}
	}

	if format == "json" {
		if err := render.JSON(os.Stdout, results); err != nil {
			return err
		}
	} else {
		render.Summary(os.Stdout, all, len(args), useColor)
	}

	if failed || len(all) > 0 {
		return errProblemsFound
	}
	return nil
}

// checkFile runs one check cycle, reusing the file's cached findings from
// earlier runs when cacheDir is set.
func checkFile(ctx context.Context, orch *pipeline.Orchestrator, cacheDir, path string, log *slog.Logger) (*doctree.Source, *pipeline.Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	c := cache.New()
	var snapshot string
	if cacheDir != "" {
		snapshot = cachePath(cacheDir, path)
		loaded, err := cache.LoadFile(snapshot, orch.CacheKey())
		if err != nil {
			log.Warn("ignoring unreadable cache", "path", snapshot, "error", err)
		}
		c = loaded
	}

	res, err := orch.CheckSource(ctx, path, content, c)
	if err != nil {
		return nil, nil, err
	}

	if snapshot != "" {
		if err := c.SaveFile(snapshot, orch.CacheKey()); err != nil {
			log.Warn("failed to save cache", "path", snapshot, "error", err)
		}
	}
	return doctree.NewSource(path, content), res, nil
}

// cachePath names the snapshot for a file by its absolute path.
func cachePath(dir, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(dir, hex.EncodeToString(sum[:12])+".msgpack")
}

func colorMode(flag string) (bool, error) {
	switch flag {
	case "auto":
		return !color.NoColor, nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("unknown color mode %q (auto|on|off)", flag)
	}
}
