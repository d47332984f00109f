// Package main implements the answerd CLI.
//
// answerd answers questions over a closed knowledge base. Two
// subcommands cover its lifecycle:
//
//	# Build the vector index from a document directory
//	answerd ingest --config answerd.yaml
//
//	# Serve the question-answering API
//	answerd serve --config answerd.yaml
//
// Configuration comes from a YAML file overridden by environment
// variables. See internal/config for details.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the shared --config flag value.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "answerd",
	Short: "Question answering over a closed knowledge base",
	Long: `answerd serves grounded answers over a directory of documents.

Documents are chunked, embedded and indexed by the ingest command; the
serve command answers questions against the persisted index through an
HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("answerd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(versionCmd)
}
