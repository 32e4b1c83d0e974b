package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

// transientCodes are Postgres SQLSTATE codes that mark a commit worth
// retrying: serialization failures and deadlocks.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
}

// Postgres is the durable Store implementation over the project,
// projectVersion, operation, and graphSnapshot tables.
type Postgres struct {
	pool *pgxpool.Pool
}

// PoolConfig shapes the connection pool, following the MaxOpenConns/
// MaxIdleConns/ConnMaxLifetime convention in jordigilh-kubernaut's
// internal/database connection config.
type PoolConfig struct {
	DSN             string
	MaxOpenConns    int32
	MaxIdleConns    int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open connects to Postgres with cfg and returns a ready Postgres store.
func Open(ctx context.Context, cfg PoolConfig) (*Postgres, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pgxCfg.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		pgxCfg.MinConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pgxCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pgxCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) GetProjectSnapshot(ctx context.Context, projectID string) (graphmodel.Snapshot, int, error) {
	var raw []byte
	var version int

	err := p.pool.QueryRow(ctx,
		`SELECT p.data, COALESCE(pv.version, 0)
		   FROM project p
		   LEFT JOIN "projectVersion" pv ON pv."projectId" = p.id
		  WHERE p.id = $1`, projectID).Scan(&raw, &version)

	if errors.Is(err, pgx.ErrNoRows) {
		return graphmodel.NewSnapshot(projectID), 0, nil
	}
	if err != nil {
		return graphmodel.Snapshot{}, 0, fmt.Errorf("store: get snapshot: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return graphmodel.Snapshot{}, 0, fmt.Errorf("store: decode snapshot: %w", err)
	}
	doc = MigrateLegacy(doc)

	reencoded, err := json.Marshal(doc)
	if err != nil {
		return graphmodel.Snapshot{}, 0, fmt.Errorf("store: reencode snapshot: %w", err)
	}
	var snap graphmodel.Snapshot
	if err := json.Unmarshal(reencoded, &snap); err != nil {
		return graphmodel.Snapshot{}, 0, fmt.Errorf("store: decode snapshot: %w", err)
	}
	snap.ProjectID = projectID

	return EnsureScaffold(snap), version, nil
}

func (p *Postgres) GetProjectVersion(ctx context.Context, projectID string) (int, error) {
	var version int
	err := p.pool.QueryRow(ctx,
		`SELECT version FROM "projectVersion" WHERE "projectId" = $1`, projectID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: get version: %w", err)
	}
	return version, nil
}

func (p *Postgres) GetOperationsAfterVersion(ctx context.Context, projectID string, v int) ([]graphmodel.Operation, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, type, "timelineId", "layerId", payload, timestamp, "userId", "deviceId", version
		   FROM operation
		  WHERE "projectId" = $1 AND version > $2
		  ORDER BY version ASC`, projectID, v)
	if err != nil {
		return nil, fmt.Errorf("store: get operations: %w", err)
	}
	defer rows.Close()

	var ops []graphmodel.Operation
	for rows.Next() {
		var op graphmodel.Operation
		var rawPayload []byte
		var userID *string
		if err := rows.Scan(&op.ID, &op.Type, &op.TimelineID, &op.LayerID, &rawPayload, &op.Timestamp, &userID, &op.DeviceID, &op.Version); err != nil {
			return nil, fmt.Errorf("store: scan operation: %w", err)
		}
		if userID != nil {
			op.UserID = *userID
		}
		if len(rawPayload) > 0 {
			if err := json.Unmarshal(rawPayload, &op.Payload); err != nil {
				return nil, fmt.Errorf("store: decode operation payload: %w", err)
			}
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// SaveChangesInTransaction is the atomic commit boundary: snapshot
// overwrite, operation inserts, project version upsert, and
// per-timeline derived-row refresh, all inside one transaction.
func (p *Postgres) SaveChangesInTransaction(ctx context.Context, projectID string, newSnapshot graphmodel.Snapshot, ops []graphmodel.Operation, newVersion int) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	data, err := json.Marshal(newSnapshot)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO project (id, data, "updatedAt") VALUES ($1, $2, now())
		   ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, "updatedAt" = now()`,
		projectID, data); err != nil {
		return classify(err)
	}

	for _, op := range ops {
		payload, err := json.Marshal(op.Payload)
		if err != nil {
			return fmt.Errorf("store: encode operation payload: %w", err)
		}
		var userID any
		if op.UserID != "" {
			userID = op.UserID
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO operation (id, "projectId", type, "timelineId", "layerId", payload, timestamp, "userId", "deviceId", version)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			op.ID, projectID, op.Type, op.TimelineID, op.LayerID, payload, op.Timestamp, userID, op.DeviceID, op.Version); err != nil {
			return classify(err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO "projectVersion" ("projectId", version, "lastSync") VALUES ($1,$2,now())
		   ON CONFLICT ("projectId") DO UPDATE SET version = EXCLUDED.version, "lastSync" = now()`,
		projectID, newVersion); err != nil {
		return classify(err)
	}

	touched := make(map[string]bool, len(ops))
	for _, op := range ops {
		touched[op.TimelineID] = true
	}
	for timelineID := range touched {
		tl, ok := newSnapshot.Timelines[timelineID]
		if !ok {
			continue
		}
		layers, err := json.Marshal(tl.Layers)
		if err != nil {
			return fmt.Errorf("store: encode timeline layers: %w", err)
		}
		variables, err := json.Marshal(tl.Variables)
		if err != nil {
			return fmt.Errorf("store: encode timeline variables: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO "graphSnapshot" (id, "projectId", layers, metadata, variables, version, timestamp, "updatedAt")
			 VALUES ($1,$2,$3,$4,$5,$6,now(),now())
			 ON CONFLICT (id) DO UPDATE SET layers = EXCLUDED.layers, variables = EXCLUDED.variables,
			   version = EXCLUDED.version, timestamp = EXCLUDED.timestamp, "updatedAt" = now()`,
			timelineID, projectID, layers, "{}", variables, newVersion); err != nil {
			return classify(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// classify wraps err with ErrTransient when its SQLSTATE is
// retryable, so internal/serializer can distinguish a retry-worthy
// commit conflict from a hard failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && transientCodes[pgErr.Code] {
		return fmt.Errorf("%w: %s", ErrTransient, pgErr.Message)
	}
	return fmt.Errorf("store: %w", err)
}
