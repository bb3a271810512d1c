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
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepository stores records in PostgreSQL via the pgx stdlib driver.
type PostgresRepository struct {
	db *sql.DB
}

// OpenPostgres connects to the database at dsn and applies the embedded
// schema migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	goose.SetBaseFS(migrations.Postgres)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error { return r.db.Close() }

const pgDeckCols = `id, name, description, created_at, updated_at, is_deleted, deleted_at`

const pgCardCols = `id, deck_id, front_content, back_content, raw_cloze_text, cloze_data, tags,
	next_review_at, fsrs_stability, fsrs_difficulty, fsrs_lapses, fsrs_state,
	created_at, updated_at, is_deleted, deleted_at`

func (r *PostgresRepository) ChangedSince(ctx context.Context, since *time.Time) ([]wire.Deck, []wire.Card, error) {
	cutoff := time.Time{}
	if since != nil {
		cutoff = *since
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+pgDeckCols+` FROM decks WHERE updated_at > $1 ORDER BY id`, cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	var decks []wire.Deck
	for rows.Next() {
		d, err := scanPGDeck(rows)
		if err != nil {
			return nil, nil, err
		}
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate decks: %w", err)
	}

	cardRows, err := r.db.QueryContext(ctx,
		`SELECT `+pgCardCols+` FROM cards WHERE updated_at > $1 ORDER BY id`, cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer cardRows.Close()

	var cards []wire.Card
	for cardRows.Next() {
		c, err := scanPGCard(cardRows)
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

func (r *PostgresRepository) CreateDeck(ctx context.Context, req wire.DeckCreate, now time.Time) (wire.Deck, error) {
	var out wire.Deck
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO decks (client_ref, name, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (client_ref) DO NOTHING
		`, req.ClientRef, req.Name, req.Description, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert deck: %w", err)
		}

		row := tx.QueryRowContext(ctx,
			`SELECT `+pgDeckCols+` FROM decks WHERE client_ref = $1`, req.ClientRef)
		out, err = scanPGDeck(row)
		return err
	})
	if err != nil {
		return wire.Deck{}, err
	}
	out.ClientRef = req.ClientRef
	return out, nil
}

func (r *PostgresRepository) CreateCard(ctx context.Context, req wire.CardCreate, now time.Time) (wire.Card, error) {
	front, back, tags, err := encodeCardJSON(req.FrontContent, req.BackContent, req.Tags)
	if err != nil {
		return wire.Card{}, err
	}

	var out wire.Card
	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var deleted bool
		err := tx.QueryRowContext(ctx, `SELECT is_deleted FROM decks WHERE id = $1`, req.DeckID).Scan(&deleted)
		if err == sql.ErrNoRows || (err == nil && deleted) {
			return fmt.Errorf("%w: deck %d", common.ErrNotFound, req.DeckID)
		}
		if err != nil {
			return fmt.Errorf("failed to check deck: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cards (client_ref, deck_id, front_content, back_content, raw_cloze_text,
				cloze_data, tags, next_review_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (client_ref) DO NOTHING
		`, req.ClientRef, req.DeckID, front, back, req.RawClozeText,
			nullStr(string(req.ClozeData)), tags, now, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert card: %w", err)
		}

		row := tx.QueryRowContext(ctx,
			`SELECT `+pgCardCols+` FROM cards WHERE client_ref = $1`, req.ClientRef)
		out, err = scanPGCard(row)
		return err
	})
	if err != nil {
		return wire.Card{}, err
	}
	out.ClientRef = req.ClientRef
	return out, nil
}

func (r *PostgresRepository) UpdateDeck(ctx context.Context, d wire.Deck, now time.Time) (*wire.Conflict, error) {
	var conflict *wire.Conflict
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var storedUpdated time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT updated_at FROM decks WHERE id = $1 FOR UPDATE`, d.ID).Scan(&storedUpdated)
		if err == sql.ErrNoRows {
			conflict = &wire.Conflict{Type: wire.ConflictDeck, ID: d.ID, Message: "deck does not exist"}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load deck: %w", err)
		}
		if storedUpdated.After(d.UpdatedAt) {
			conflict = &wire.Conflict{Type: wire.ConflictDeck, ID: d.ID, Message: "a newer version exists on the server"}
			return nil
		}

		if d.IsDeleted {
			_, err = tx.ExecContext(ctx,
				`UPDATE decks SET is_deleted = TRUE, deleted_at = $1, updated_at = $2 WHERE id = $3`,
				now, now, d.ID)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE decks SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
				d.Name, d.Description, now, d.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to update deck: %w", err)
		}
		return nil
	})
	return conflict, err
}

func (r *PostgresRepository) UpdateCard(ctx context.Context, c wire.Card, now time.Time) (*wire.Conflict, error) {
	front, back, tags, err := encodeCardJSON(c.FrontContent, c.BackContent, c.Tags)
	if err != nil {
		return nil, err
	}

	var conflict *wire.Conflict
	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var storedUpdated time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT updated_at FROM cards WHERE id = $1 FOR UPDATE`, c.ID).Scan(&storedUpdated)
		if err == sql.ErrNoRows {
			conflict = &wire.Conflict{Type: wire.ConflictCard, ID: c.ID, Message: "card does not exist"}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load card: %w", err)
		}
		if storedUpdated.After(c.UpdatedAt) {
			conflict = &wire.Conflict{Type: wire.ConflictCard, ID: c.ID, Message: "a newer version exists on the server"}
			return nil
		}

		if c.IsDeleted {
			_, err = tx.ExecContext(ctx,
				`UPDATE cards SET is_deleted = TRUE, deleted_at = $1, updated_at = $2 WHERE id = $3`,
				now, now, c.ID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE cards SET front_content = $1, back_content = $2, raw_cloze_text = $3,
					cloze_data = $4, tags = $5, next_review_at = $6, fsrs_stability = $7,
					fsrs_difficulty = $8, fsrs_lapses = $9, fsrs_state = $10, updated_at = $11
				WHERE id = $12
			`, front, back, c.RawClozeText, nullStr(string(c.ClozeData)), tags,
				c.NextReviewAt, c.FSRSStability, c.FSRSDifficulty,
				c.FSRSLapses, c.FSRSState, now, c.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to update card: %w", err)
		}
		return nil
	})
	return conflict, err
}

func scanPGDeck(row rowScanner) (wire.Deck, error) {
	var (
		d       wire.Deck
		deleted sql.NullTime
	)
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt, &d.IsDeleted, &deleted)
	if err != nil {
		return wire.Deck{}, fmt.Errorf("failed to scan deck: %w", err)
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	if deleted.Valid {
		t := deleted.Time.UTC()
		d.DeletedAt = &t
	}
	return d, nil
}

func scanPGCard(row rowScanner) (wire.Card, error) {
	var (
		c                     wire.Card
		front, back, cloze    sql.NullString
		tags                  sql.NullString
		nextReview, deleted   sql.NullTime
		stability, difficulty sql.NullFloat64
	)
	err := row.Scan(&c.ID, &c.DeckID, &front, &back, &c.RawClozeText, &cloze, &tags,
		&nextReview, &stability, &difficulty, &c.FSRSLapses, &c.FSRSState,
		&c.CreatedAt, &c.UpdatedAt, &c.IsDeleted, &deleted)
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
		t := nextReview.Time.UTC()
		c.NextReviewAt = &t
	}
	if stability.Valid {
		c.FSRSStability = &stability.Float64
	}
	if difficulty.Valid {
		c.FSRSDifficulty = &difficulty.Float64
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	if deleted.Valid {
		t := deleted.Time.UTC()
		c.DeletedAt = &t
	}
	return c, nil
}
