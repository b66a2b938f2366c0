// Package cmd provides shared construction helpers for the journey binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pathwave/journey/pkg/persistence"
	"github.com/pathwave/journey/pkg/persistence/file"
	"github.com/pathwave/journey/pkg/persistence/postgresql"
)

// NewPersistence picks the storage backend from the database URL scheme:
// postgres:// for PostgreSQL, anything else is treated as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	scheme, rest, found := strings.Cut(databaseURL, "://")

	switch {
	case found && (scheme == "postgres" || scheme == "postgresql"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgresql persistence: %w", err))
		}

		return p
	case found && scheme == "file":
		return newFilePersistence(rest)
	default:
		return newFilePersistence(databaseURL)
	}
}

func newFilePersistence(root string) persistence.Persistence {
	p, err := file.NewPersistence(root)
	if err != nil {
		panic(fmt.Errorf("failed to initialize file persistence: %w", err))
	}

	return p
}
