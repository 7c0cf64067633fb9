package audit

import (
	"context"
	"database/sql"
	"time"

	"polyrec.org/internal/ids"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into audit_log(id, actor_id, action, occurred_at) values($1,$2,$3,$4)`,
		entry.ID, entry.ActorID, entry.Action, entry.OccurredAt,
	)
	return err
}

func (s *PGStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select a.id, a.actor_id, coalesce(u.username,''), a.action, a.occurred_at
		from audit_log a
		left join users u on u.id = a.actor_id
		order by a.occurred_at desc, a.id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.OccurredAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
