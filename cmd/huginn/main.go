// Package main provides the Huginn CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orneryd/huginn/pkg/config"
	"github.com/orneryd/huginn/pkg/huginn"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "huginn",
		Short: "Huginn - RDF Ontology Structure Analyzer",
		Long: `Huginn derives the effective ontology of an RDF dataset by
simulating random walks over its class-relation graph, pruning weakly
connected classes and scoring every predicate of the survivors.

Features:
  • Embedded triple store with N-Triples loading
  • SPARQL subset for queries, updates and routines
  • Versioned update history with snapshot dump and revert
  • Random-walk class pruning and fused predicate scoring`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (YAML)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Huginn v%s (%s)\n", version, commit)
		},
	})

	loadCmd := &cobra.Command{
		Use:   "load [file.nt]",
		Short: "Load an N-Triples file into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dump, _ := cmd.Flags().GetBool("dump")
			return runLoad(cmd, configPath, args[0], dump)
		},
	}
	loadCmd.Flags().String("data-dir", "", "Data directory (overrides config)")
	loadCmd.Flags().Bool("dump", false, "Snapshot the dataset after loading")
	rootCmd.AddCommand(loadCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze [root-class]",
		Short: "Analyze the dataset structure rooted at a class",
		Long: `Analyze runs the full pipeline: graph build, random-walk class
pruning and predicate scoring. Without --apply the run is a dry run and
the dataset is left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apply, _ := cmd.Flags().GetBool("apply")
			return runAnalyze(cmd, configPath, args[0], apply)
		},
	}
	analyzeCmd.Flags().String("data-dir", "", "Data directory (overrides config)")
	analyzeCmd.Flags().Bool("apply", false, "Write analysis decisions back to the dataset")
	rootCmd.AddCommand(analyzeCmd)

	queryCmd := &cobra.Command{
		Use:   "query [sparql]",
		Short: "Run a read query against the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, configPath, args[0])
		},
	}
	queryCmd.Flags().String("data-dir", "", "Data directory (overrides config)")
	rootCmd.AddCommand(queryCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the update history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, configPath)
		},
	}
	historyCmd.Flags().String("data-dir", "", "Data directory (overrides config)")
	rootCmd.AddCommand(historyCmd)

	revertCmd := &cobra.Command{
		Use:   "revert [version]",
		Short: "Roll the dataset back to an earlier version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return runRevert(cmd, configPath, v)
		},
	}
	revertCmd.Flags().String("data-dir", "", "Data directory (overrides config)")
	rootCmd.AddCommand(revertCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openDB loads the configuration and opens the database for a command.
func openDB(cmd *cobra.Command, configPath string) (*huginn.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return huginn.Open(dataDir, cfg)
}

// commandContext returns a context cancelled by SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runLoad(cmd *cobra.Command, configPath, file string, dump bool) error {
	db, err := openDB(cmd, configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := commandContext()
	defer cancel()

	stats, err := db.LoadFile(ctx, file)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d triples (%d duplicates, %d skipped), version %d\n",
		stats.Inserted, stats.Duplicates, stats.Skipped, db.HistoryVersion())

	if dump {
		path, err := db.DumpVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot written to %s\n", path)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, configPath, root string, apply bool) error {
	db, err := openDB(cmd, configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := commandContext()
	defer cancel()

	report, err := db.Analyze(ctx, root, apply)
	if err != nil {
		return err
	}

	fmt.Printf("Root: %s\n", report.Root)
	fmt.Printf("Class ranking:\n")
	for _, rec := range report.Ranking {
		marker := "drop"
		if rec.Kept {
			marker = "keep"
		}
		fmt.Printf("  [%s] %-58s score %.4f round %d\n", marker, rec.Class, rec.Score, rec.Round)
	}
	fmt.Printf("Kept classes (%d):\n", len(report.Keep))
	for _, class := range report.Keep {
		fmt.Printf("  %-60s score %.4f\n", class, report.ClassScores[class])
		for _, p := range report.Predicates[class] {
			marker := "drop"
			if p.Kept {
				marker = "keep"
			}
			fmt.Printf("    [%s] %-50s score %.4f conf %.2f\n",
				marker, p.Predicate, p.Score, p.Confidence)
		}
	}
	if report.Applied {
		fmt.Printf("Decisions applied, version %d\n", db.HistoryVersion())
	} else {
		fmt.Println("Dry run: no changes written (use --apply)")
	}
	return nil
}

func runQuery(cmd *cobra.Command, configPath, text string) error {
	db, err := openDB(cmd, configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := commandContext()
	defer cancel()

	rows, err := db.Query(ctx, text)
	if err != nil {
		return err
	}
	for _, row := range rows {
		for i, name := range row.Vars {
			if i > 0 {
				fmt.Print("\t")
			}
			if term := row.Get(name); term != nil {
				fmt.Print(term.String())
			}
		}
		fmt.Println()
	}
	fmt.Printf("%d rows\n", len(rows))
	return nil
}

func runHistory(cmd *cobra.Command, configPath string) error {
	db, err := openDB(cmd, configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	lines, err := db.Store().History()
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	fmt.Printf("Version %d\n", db.HistoryVersion())
	return nil
}

func runRevert(cmd *cobra.Command, configPath string, version int) error {
	db, err := openDB(cmd, configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := commandContext()
	defer cancel()

	if err := db.Revert(ctx, version); err != nil {
		return err
	}
	fmt.Printf("Reverted to version %d\n", version)
	return nil
}
