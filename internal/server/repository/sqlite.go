package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/common"
	"github.com/cardkeeper/cardkeeper/internal/dbx"
	"github.com/cardkeeper/cardkeeper/internal/server/migrations"
	"github.com/cardkeeper/cardkeeper/internal/wire"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteRepository stores records in a single sqlite file. Timestamps are
// unix nanoseconds so the updated_at comparisons stay exact.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dsn and applies the
// embedded schema migrations.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	goose.SetBaseFS(migrations.SQLite)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "sqlite"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

const sqliteDeckCols = `id, name, description, created_at, updated_at, is_deleted, deleted_at`

const sqliteCardCols = `id, deck_id, front_content, back_content, raw_cloze_text, cloze_data, tags,
	next_review_at, fsrs_stability, fsrs_difficulty, fsrs_lapses, fsrs_state,
	created_at, updated_at, is_deleted, deleted_at`

func (r *SQLiteRepository) ChangedSince(ctx context.Context, since *time.Time) ([]wire.Deck, []wire.Card, error) {
	cutoff := int64(0)
	if since != nil {
		cutoff = since.UnixNano()
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sqliteDeckCols+` FROM decks WHERE updated_at > ? ORDER BY id`, cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	var decks []wire.Deck
	for rows.Next() {
		d, err := scanSQLiteDeck(rows)
		if err != nil {
			return nil, nil, err
		}
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate decks: %w", err)
	}

	cardRows, err := r.db.QueryContext(ctx,
		`SELECT `+sqliteCardCols+` FROM cards WHERE updated_at > ? ORDER BY id`, cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer cardRows.Close()

	var cards []wire.Card
	for cardRows.Next() {
		c, err := scanSQLiteCard(cardRows)
		if err != nil {
			return nil, nil, err
		}
		cards = append(cards, c)
	}
	if err := cardRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate cards: %w", err)
	}

	return decks, cards, nil
}

// CreateDeck inserts a deck unless the client_ref was already used, in which
// case the previously created row is returned unchanged.
func (r *SQLiteRepository) CreateDeck(ctx context.Context, req wire.DeckCreate, now time.Time) (wire.Deck, error) {
	var out wire.Deck
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO decks (client_ref, name, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(client_ref) DO NOTHING
		`, req.ClientRef, req.Name, req.Description, now.UnixNano(), now.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert deck: %w", err)
		}

		row := tx.QueryRowContext(ctx,
			`SELECT `+sqliteDeckCols+` FROM decks WHERE client_ref = ?`, req.ClientRef)
		out, err = scanSQLiteDeck(row)
		return err
	})
	if err != nil {
		return wire.Deck{}, err
	}
	out.ClientRef = req.ClientRef
	return out, nil
}

// CreateCard inserts a card unless the client_ref was already used. The
// target deck must exist and be active.
func (r *SQLiteRepository) CreateCard(ctx context.Context, req wire.CardCreate, now time.Time) (wire.Card, error) {
	front, back, tags, err := encodeCardJSON(req.FrontContent, req.BackContent, req.Tags)
	if err != nil {
		return wire.Card{}, err
	}

	var out wire.Card
	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var deleted bool
		err := tx.QueryRowContext(ctx, `SELECT is_deleted FROM decks WHERE id = ?`, req.DeckID).Scan(&deleted)
		if err == sql.ErrNoRows || (err == nil && deleted) {
			return fmt.Errorf("%w: deck %d", common.ErrNotFound, req.DeckID)
		}
		if err != nil {
			return fmt.Errorf("failed to check deck: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cards (client_ref, deck_id, front_content, back_content, raw_cloze_text,
				cloze_data, tags, next_review_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(client_ref) DO NOTHING
		`, req.ClientRef, req.DeckID, front, back, req.RawClozeText,
			nullStr(string(req.ClozeData)), tags, now.UnixNano(), now.UnixNano(), now.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert card: %w", err)
		}

		row := tx.QueryRowContext(ctx,
			`SELECT `+sqliteCardCols+` FROM cards WHERE client_ref = ?`, req.ClientRef)
		out, err = scanSQLiteCard(row)
		return err
	})
	if err != nil {
		return wire.Card{}, err
	}
	out.ClientRef = req.ClientRef
	return out, nil
}

// UpdateDeck applies an update or soft delete unless the stored row is newer
// than the incoming one.
func (r *SQLiteRepository) UpdateDeck(ctx context.Context, d wire.Deck, now time.Time) (*wire.Conflict, error) {
	var conflict *wire.Conflict
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var storedUpdated int64
		err := tx.QueryRowContext(ctx, `SELECT updated_at FROM decks WHERE id = ?`, d.ID).Scan(&storedUpdated)
		if err == sql.ErrNoRows {
			conflict = &wire.Conflict{Type: wire.ConflictDeck, ID: d.ID, Message: "deck does not exist"}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load deck: %w", err)
		}
		if storedUpdated > d.UpdatedAt.UnixNano() {
			conflict = &wire.Conflict{Type: wire.ConflictDeck, ID: d.ID, Message: "a newer version exists on the server"}
			return nil
		}

		if d.IsDeleted {
			_, err = tx.ExecContext(ctx,
				`UPDATE decks SET is_deleted = 1, deleted_at = ?, updated_at = ? WHERE id = ?`,
				now.UnixNano(), now.UnixNano(), d.ID)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE decks SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
				d.Name, d.Description, now.UnixNano(), d.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to update deck: %w", err)
		}
		return nil
	})
	return conflict, err
}

// UpdateCard applies an update or soft delete unless the stored row is newer
// than the incoming one.
func (r *SQLiteRepository) UpdateCard(ctx context.Context, c wire.Card, now time.Time) (*wire.Conflict, error) {
	front, back, tags, err := encodeCardJSON(c.FrontContent, c.BackContent, c.Tags)
	if err != nil {
		return nil, err
	}

	var conflict *wire.Conflict
	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var storedUpdated int64
		err := tx.QueryRowContext(ctx, `SELECT updated_at FROM cards WHERE id = ?`, c.ID).Scan(&storedUpdated)
		if err == sql.ErrNoRows {
			conflict = &wire.Conflict{Type: wire.ConflictCard, ID: c.ID, Message: "card does not exist"}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load card: %w", err)
		}
		if storedUpdated > c.UpdatedAt.UnixNano() {
			conflict = &wire.Conflict{Type: wire.ConflictCard, ID: c.ID, Message: "a newer version exists on the server"}
			return nil
		}

		if c.IsDeleted {
			_, err = tx.ExecContext(ctx,
				`UPDATE cards SET is_deleted = 1, deleted_at = ?, updated_at = ? WHERE id = ?`,
				now.UnixNano(), now.UnixNano(), c.ID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE cards SET front_content = ?, back_content = ?, raw_cloze_text = ?,
					cloze_data = ?, tags = ?, next_review_at = ?, fsrs_stability = ?,
					fsrs_difficulty = ?, fsrs_lapses = ?, fsrs_state = ?, updated_at = ?
				WHERE id = ?
			`, front, back, c.RawClozeText, nullStr(string(c.ClozeData)), tags,
				nanosPtr(c.NextReviewAt), c.FSRSStability, c.FSRSDifficulty,
				c.FSRSLapses, c.FSRSState, now.UnixNano(), c.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to update card: %w", err)
		}
		return nil
	})
	return conflict, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDeck(row rowScanner) (wire.Deck, error) {
	var (
		d                wire.Deck
		created, updated int64
		deleted          sql.NullInt64
	)
	err := row.Scan(&d.ID, &d.Name, &d.Description, &created, &updated, &d.IsDeleted, &deleted)
	if err != nil {
		return wire.Deck{}, fmt.Errorf("failed to scan deck: %w", err)
	}
	d.CreatedAt = fromNanos(created)
	d.UpdatedAt = fromNanos(updated)
	if deleted.Valid {
		t := fromNanos(deleted.Int64)
		d.DeletedAt = &t
	}
	return d, nil
}

func scanSQLiteCard(row rowScanner) (wire.Card, error) {
	var (
		c                     wire.Card
		front, back, cloze    sql.NullString
		tags                  sql.NullString
		created, updated      int64
		nextReview, deleted   sql.NullInt64
		stability, difficulty sql.NullFloat64
	)
	err := row.Scan(&c.ID, &c.DeckID, &front, &back, &c.RawClozeText, &cloze, &tags,
		&nextReview, &stability, &difficulty, &c.FSRSLapses, &c.FSRSState,
		&created, &updated, &c.IsDeleted, &deleted)
	if err != nil {
		return wire.Card{}, fmt.Errorf("failed to scan card: %w", err)
	}

	if front.Valid && front.String != "" {
		if err := json.Unmarshal([]byte(front.String), &c.FrontContent); err != nil {
			return wire.Card{}, fmt.Errorf("failed to decode front content: %w", err)
		}
	}
	if back.Valid && back.String != "" {
		if err := json.Unmarshal([]byte(back.String), &c.BackContent); err != nil {
			return wire.Card{}, fmt.Errorf("failed to decode back content: %w", err)
		}
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &c.Tags); err != nil {
			return wire.Card{}, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	if cloze.Valid && cloze.String != "" {
		c.ClozeData = json.RawMessage(cloze.String)
	}
	if nextReview.Valid {
		t := fromNanos(nextReview.Int64)
		c.NextReviewAt = &t
	}
	if stability.Valid {
		c.FSRSStability = &stability.Float64
	}
	if difficulty.Valid {
		c.FSRSDifficulty = &difficulty.Float64
	}
	c.CreatedAt = fromNanos(created)
	c.UpdatedAt = fromNanos(updated)
	if deleted.Valid {
		t := fromNanos(deleted.Int64)
		c.DeletedAt = &t
	}
	return c, nil
}

func encodeCardJSON(front, back []wire.ContentBlock, tags []string) (any, any, any, error) {
	var frontVal, backVal, tagsVal any
	if len(front) > 0 {
		b, err := json.Marshal(front)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode front content: %w", err)
		}
		frontVal = string(b)
	}
	if len(back) > 0 {
		b, err := json.Marshal(back)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode back content: %w", err)
		}
		backVal = string(b)
	}
	if len(tags) > 0 {
		b, err := json.Marshal(tags)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode tags: %w", err)
		}
		tagsVal = string(b)
	}
	return frontVal, backVal, tagsVal, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nanosPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
