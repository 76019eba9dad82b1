// Package backend selects the ledger store implementation from config.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"racha/internal/config"
	"racha/internal/core"
	"racha/internal/sheets"
	"racha/internal/sheets/google"
	"racha/internal/sheets/memory"
)

// New builds the configured store. The memory backend provisions all twelve
// partitions; the sheets backend expects the tabs to exist in the
// spreadsheet.
func New(ctx context.Context, cfg *config.Config, roster core.Roster) (sheets.Store, error) {
	switch cfg.DataBackend {
	case "memory":
		slog.Info("Using in-memory ledger store")
		return memory.New(roster), nil
	case "sheets":
		client, err := google.NewFromEnv(ctx, roster)
		if err != nil {
			return nil, fmt.Errorf("create sheets store: %w", err)
		}
		slog.Info("Using Google Sheets ledger store", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		return client, nil
	default:
		return nil, fmt.Errorf("unknown data backend: %s", cfg.DataBackend)
	}
}
