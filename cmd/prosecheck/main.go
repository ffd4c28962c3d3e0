package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "prosecheck",
	Short:         "Grammar and style checking for markup documents",
	Long:          `prosecheck checks the prose of Markdown, HTML and text files with a LanguageTool-compatible checker and reports findings at their source positions`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	rootCmd.AddCommand(checkCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log check cycles to stderr")

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errProblemsFound) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
