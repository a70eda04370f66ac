package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/roommatch/matcher/internal/apperrors"
	"github.com/roommatch/matcher/internal/models"
)

// LoadPostgres reads the corpus from table, ordered by its position column:
//
//	CREATE TABLE profiles (position int PRIMARY KEY, profile jsonb NOT NULL, embedding vector);
//
// The pool must have pgvector types registered (see database.WithAfterConnect).
// A NULL embedding breaks co-indexing and is reported as an integrity error.
func LoadPostgres(ctx context.Context, db *pgxpool.Pool, table string) (*Store, error) {
	source := "postgres:" + table

	query := fmt.Sprintf(`SELECT position, profile, embedding FROM %s ORDER BY position`,
		pgx.Identifier{table}.Sanitize())

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewStartupIntegrityError(source, "unreadable", err)
	}
	defer rows.Close()

	var (
		profiles []models.Profile
		vectors  []models.EmbeddingVector
	)

	for rows.Next() {
		var (
			position  int
			raw       []byte
			embedding *pgvector.Vector
		)

		if err := rows.Scan(&position, &raw, &embedding); err != nil {
			return nil, apperrors.NewStartupIntegrityError(source, "malformed row", err)
		}

		var profile models.Profile
		if err := json.Unmarshal(raw, &profile); err != nil {
			return nil, apperrors.NewStartupIntegrityError(source, fmt.Sprintf("profile at position %d", position), err)
		}

		if embedding == nil {
			return nil, apperrors.NewStartupIntegrityError(source,
				fmt.Sprintf("profile at position %d has no embedding", position), nil)
		}

		profiles = append(profiles, profile)
		vectors = append(vectors, embedding.Slice())
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStartupIntegrityError(source, "unreadable", err)
	}

	store, err := New(source, profiles, vectors)
	if err != nil {
		return nil, err
	}

	slog.Info("corpus loaded from postgres",
		"table", table,
		"profiles", store.Len(),
		"dimensions", store.Dimensions(),
	)

	return store, nil
}
