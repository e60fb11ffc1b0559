package persist

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/BarzinL/IsoTalia/internal/command"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/replay"
)

// JournalRepo stores the external command stream of each run.
type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// BeginRun registers a run so its journal rows can reference it.
func (r *JournalRepo) BeginRun(ctx context.Context, run uuid.UUID, seed int64, tickRate int) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO runs (run_id, seed, tick_rate) VALUES ($1::uuid, $2, $3)`,
		run.String(), seed, tickRate,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// AppendJournal atomically writes a batch of entries in a single transaction.
func (r *JournalRepo) AppendJournal(ctx context.Context, run uuid.UUID, entries []replay.Entry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		raw, err := command.Encode(e.Command)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO command_journal (run_id, seq, tick, command)
			 VALUES ($1::uuid, $2, $3, $4)`,
			run.String(), int64(e.Seq), int64(e.Tick), raw,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// LoadJournal returns a run's entries in sequence order.
func (r *JournalRepo) LoadJournal(ctx context.Context, run uuid.UUID) ([]replay.Entry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT seq, tick, command FROM command_journal WHERE run_id = $1::uuid ORDER BY seq`,
		run.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []replay.Entry
	for rows.Next() {
		var (
			seq, tick int64
			raw       []byte
		)
		if err := rows.Scan(&seq, &tick, &raw); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		cmd, err := command.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("journal seq %d: %w", seq, err)
		}
		cmd.Seq = uint64(seq)
		out = append(out, replay.Entry{Tick: clock.Ticks(tick), Seq: uint64(seq), Command: cmd})
	}
	return out, rows.Err()
}
