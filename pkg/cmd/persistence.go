package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/dukex/workgraph/pkg/persistence/file"
	"github.com/dukex/workgraph/pkg/persistence/postgresql"
)

// NewPersistence opens the store named by databaseURL. postgres:// and postgresql:// URLs
// select PostgreSQL; file://<dir> or a bare path selects the JSON file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, rest, found := strings.Cut(databaseURL, "://")
	if !found {
		provider, rest = "file", databaseURL
	}

	switch provider {
	case "postgres", "postgresql":
		logger.InfoContext(ctx, "Using PostgreSQL persistence")

		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "file":
		if rest == "" {
			return nil, fmt.Errorf("file persistence requires a directory, got %q", databaseURL)
		}

		logger.InfoContext(ctx, "Using file persistence", "root", rest)

		return file.NewPersistence(rest), nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider %q", provider)
	}
}
