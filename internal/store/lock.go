package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/agentstation/keysync/pkg/errors"
)

// AcquireLock takes the advisory lock for owner. Taking a lock already held
// by the same owner succeeds, so a resumed run can re-enter it. A lock held by
// anyone else fails with LockedError.
func (s *Store) AcquireLock(ctx context.Context, owner string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO store_lock (id, owner, store, acquired_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET acquired_at = excluded.acquired_at
		WHERE store_lock.owner = excluded.owner
	`, owner, s.identity, toNanos(time.Now()))
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if n == 0 {
		holder, _, err := s.LockOwner(ctx)
		if err != nil {
			return err
		}
		return &errors.LockedError{Store: s.identity, Owner: holder}
	}
	return nil
}

// ReleaseLock releases a lock held by owner. Releasing a lock that owner does
// not hold is a no-op.
func (s *Store) ReleaseLock(ctx context.Context, owner string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM store_lock WHERE id = 1 AND owner = ?`, owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// LockOwner returns the current lock holder.
func (s *Store) LockOwner(ctx context.Context) (string, bool, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner FROM store_lock WHERE id = 1`).Scan(&owner)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read lock: %w", err)
	}
	return owner, true, nil
}

// ForceUnlock clears the lock whoever holds it and returns the previous
// holder. It is meant for operators recovering from a crashed run.
func (s *Store) ForceUnlock(ctx context.Context) (string, error) {
	owner, held, err := s.LockOwner(ctx)
	if err != nil || !held {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM store_lock WHERE id = 1`); err != nil {
		return "", fmt.Errorf("force unlock: %w", err)
	}
	return owner, nil
}
