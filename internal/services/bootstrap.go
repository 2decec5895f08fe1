package services

import (
	"context"

	"armoree/backend/internal/logging"
	"armoree/backend/internal/repository"
)

// EnsurePublicTables makes sure the shared mapping table exists. It is best
// effort: a failure is logged and startup continues, because a missing table
// surfaces as a clear error on the first registration anyway. The return
// value reports whether the check succeeded.
func EnsurePublicTables(ctx context.Context, store repository.TenantStore, logger *logging.Logger) bool {
	if err := store.EnsurePublicTables(ctx); err != nil {
		logger.Error("failed to ensure public tables", "error", err)
		return false
	}
	logger.Info("public tables ready")
	return true
}
