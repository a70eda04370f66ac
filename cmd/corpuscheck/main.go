// Command corpuscheck loads a profile corpus with the server's loaders and
// reports its shape, or the integrity error that would stop the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roommatch/matcher/internal/config"
	"github.com/roommatch/matcher/internal/corpus"
	"github.com/roommatch/matcher/pkg/database"
	"github.com/roommatch/matcher/pkg/embeddings"
)

const loadTimeout = time.Minute

type options struct {
	source         string
	profilesPath   string
	embeddingsPath string
	databaseURL    string
	table          string
	jsonOutput     bool
}

// report summarizes a loaded corpus.
type report struct {
	Source      string   `json:"source"`
	Profiles    int      `json:"profiles"`
	Dimensions  int      `json:"dimensions"`
	ZeroVectors []int    `json:"zero_vectors,omitempty"`
	DuplicateID []string `json:"duplicate_ids,omitempty"`
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "corpuscheck",
		Short:         "Validate the profile corpus the matcher would load",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), loadTimeout)
			defer cancel()

			rep, err := check(ctx, opts)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "corpus check failed:", err)

				return err
			}

			return printReport(cmd.OutOrStdout(), rep, opts.jsonOutput)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.source, "source", envOr("CORPUS_SOURCE", config.CorpusSourceFile), "corpus source: file or postgres")
	flags.StringVar(&opts.profilesPath, "profiles", envOr("CORPUS_PROFILES_PATH", "profiles.json"), "profiles JSON file")
	flags.StringVar(&opts.embeddingsPath, "embeddings", envOr("CORPUS_EMBEDDINGS_PATH", "profile_embeddings.json"),
		"embeddings JSON file")
	flags.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres URL for --source=postgres")
	flags.StringVar(&opts.table, "table", envOr("CORPUS_TABLE", "profiles"), "corpus table for --source=postgres")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print the report as JSON")

	return cmd
}

func check(ctx context.Context, opts *options) (report, error) {
	// Loader progress logs go to stderr only at warn and above.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	var (
		store  *corpus.Store
		source string
		err    error
	)

	switch opts.source {
	case config.CorpusSourceFile:
		source = opts.profilesPath + " + " + opts.embeddingsPath
		store, err = corpus.LoadFiles(opts.profilesPath, opts.embeddingsPath)
	case config.CorpusSourcePostgres:
		if opts.databaseURL == "" {
			return report{}, config.ErrDatabaseURLRequired
		}

		source = "postgres:" + opts.table

		db, dbErr := database.NewPostgresPool(ctx, opts.databaseURL, database.WithVectorTypes(), database.WithMaxConns(1))
		if dbErr != nil {
			return report{}, fmt.Errorf("connect: %w", dbErr)
		}
		defer db.Close()

		store, err = corpus.LoadPostgres(ctx, db, opts.table)
	default:
		return report{}, fmt.Errorf("%w: got %q", config.ErrInvalidCorpusSource, opts.source)
	}

	if err != nil {
		return report{}, err
	}

	return summarize(source, store), nil
}

func summarize(source string, store *corpus.Store) report {
	rep := report{
		Source:     source,
		Profiles:   store.Len(),
		Dimensions: store.Dimensions(),
	}

	for i, v := range store.AllVectors() {
		if embeddings.Norm(v) == 0 {
			rep.ZeroVectors = append(rep.ZeroVectors, i)
		}
	}

	seen := make(map[string]bool, store.Len())

	for i := range store.Len() {
		p, err := store.Get(i)
		if err != nil {
			continue
		}

		if seen[p.ID] {
			rep.DuplicateID = append(rep.DuplicateID, p.ID)
		}

		seen[p.ID] = true
	}

	return rep
}

func printReport(w io.Writer, rep report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}

		return nil
	}

	fmt.Fprintf(w, "source:     %s\n", rep.Source)
	fmt.Fprintf(w, "profiles:   %d\n", rep.Profiles)
	fmt.Fprintf(w, "dimensions: %d\n", rep.Dimensions)

	if rep.Profiles == 0 {
		fmt.Fprintln(w, "warning: corpus is empty; every search would fail")
	}

	if len(rep.ZeroVectors) > 0 {
		fmt.Fprintf(w, "warning: %d zero vectors (score 0 for every query) at %v\n", len(rep.ZeroVectors), rep.ZeroVectors)
	}

	if len(rep.DuplicateID) > 0 {
		fmt.Fprintf(w, "warning: duplicate profile ids %v\n", rep.DuplicateID)
	}

	return nil
}
