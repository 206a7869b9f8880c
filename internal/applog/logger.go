// Package applog provides the engine's structured logger.
package applog

import (
	"log/slog"
	"os"
)

// Logger is the global structured logger instance.
var Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// WithTable returns a logger annotated with the table a call is operating
// on, so every log line from a facade operation carries its target.
func WithTable(table string) *slog.Logger {
	return Logger.With("table", table)
}

// WithTransaction returns a logger annotated with the transaction_id shared
// by every audit event a single facade call produces.
func WithTransaction(table, transactionID string) *slog.Logger {
	return Logger.With("table", table, "transaction_id", transactionID)
}
