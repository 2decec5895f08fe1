package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"armoree/backend/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jpillora/backoff"
)

const applicationName = "armoree"

var errConnectionTimeout = errors.New("timed out connecting to postgres")

type queryStartKey struct{}

// queryTracer logs every SQL statement at debug level.
type queryTracer struct {
	logger *logging.Logger
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	t.logger.Debug("Starting SQL command", "sql", data.SQL, "args", len(data.Args))
	return context.WithValue(ctx, queryStartKey{}, time.Now())
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if data.Err != nil {
		t.logger.Debug("SQL command failed", "error", data.Err)
		return
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		start = time.Now()
	}
	t.logger.Debug("SQL command finished", "duration_ms", time.Since(start).Milliseconds(), "tag", data.CommandTag.String())
}

// Connect opens a pgx pool for databaseURL, retrying with exponential backoff
// until the database answers a ping or timeout elapses.
func Connect(ctx context.Context, databaseURL string, timeout time.Duration, logger *logging.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = &queryTracer{logger: logger}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	b := &backoff.Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}

		wait := b.Duration()
		logger.Warn("Postgres not reachable, retrying", "error", err, "attempt", int(b.Attempt()), "wait", wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			logger.Error("Connection to Postgres failed", "timeout", timeout, "error", err)
			return nil, fmt.Errorf("%w: %w", errConnectionTimeout, err)
		case <-time.After(wait):
		}
	}
}
