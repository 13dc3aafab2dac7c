package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"lanshare/internal/app/db"
	"lanshare/internal/app/user"
)

const (
	selectUsersSQL = `
SELECT user_id, username, address, device_info, last_seen
FROM lan_users
ORDER BY seq`

	upsertUserSQL = `
INSERT INTO lan_users (user_id, seq, username, address, device_info, last_seen)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
    seq = EXCLUDED.seq,
    username = EXCLUDED.username,
    address = EXCLUDED.address,
    device_info = EXCLUDED.device_info,
    last_seen = EXCLUDED.last_seen`

	pruneUsersSQL = `DELETE FROM lan_users WHERE NOT (user_id = ANY($1))`
)

// PostgresRepository stores the directory in the lan_users table.
// Save rewrites the table in one transaction, keeping the overwrite-whole semantics
// of the file repository; seq preserves insertion order.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository uses a pool created by db.NewPool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Load reads every user in insertion order.
func (r *PostgresRepository) Load(ctx context.Context) ([]user.User, error) {
	rows, err := r.pool.Query(ctx, selectUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.User, error) {
		var (
			u        user.User
			lastSeen pgtype.Timestamptz
		)
		if err := row.Scan(&u.ID, &u.Username, &u.Address, &u.DeviceInfo, &lastSeen); err != nil {
			return user.User{}, err
		}
		if lastSeen.Valid {
			u.LastSeen = lastSeen.Time.Local()
		}
		return u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}

	return users, nil
}

// Save upserts every user and deletes rows that are no longer present.
func (r *PostgresRepository) Save(ctx context.Context, users []user.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(users))
	batch := &pgx.Batch{}

	for i, u := range users {
		ids = append(ids, u.ID)
		batch.Queue(upsertUserSQL,
			u.ID,
			i,
			u.Username,
			u.Address,
			u.DeviceInfo,
			pgtype.Timestamptz{Time: u.LastSeen, Valid: !u.LastSeen.IsZero()},
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if constraint, ok := db.UniqueViolation(err); ok {
			return fmt.Errorf("upsert users: %s violated: %w", constraint, err)
		}
		return fmt.Errorf("upsert users: %w", err)
	}

	if _, err := tx.Exec(ctx, pruneUsersSQL, ids); err != nil {
		return fmt.Errorf("prune users: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}
