package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dharsanguruparan/vaultlink/internal/apperr"
	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// LinkRepository wraps the SQL for the links table.
type LinkRepository struct {
	db DBTX
}

// NewLinkRepository constructs a repository.
func NewLinkRepository(db DBTX) *LinkRepository {
	return &LinkRepository{db: db}
}

// CreateLink inserts link. A taken id surfaces as apperr.CodeCollision via
// the primary key.
func (r *LinkRepository) CreateLink(ctx context.Context, link *model.Link) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO links (id, item_ids, created_at) VALUES ($1,$2,$3)`,
		link.ID, link.ItemIDs, link.CreatedAt)
	return apperr.FromPostgres(err, "insert link")
}

// FindLink returns one link.
func (r *LinkRepository) FindLink(ctx context.Context, id string) (*model.Link, error) {
	var l model.Link
	err := r.db.QueryRow(ctx, `SELECT id, item_ids, created_at FROM links WHERE id=$1`, id).
		Scan(&l.ID, &l.ItemIDs, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("link %s not found", id)
		}
		return nil, apperr.FromPostgres(err, "select link")
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

// LinksReferencing returns every link whose item set overlaps itemIDs,
// newest first, in a single query.
func (r *LinkRepository) LinksReferencing(ctx context.Context, itemIDs []string) ([]*model.Link, error) {
	if len(itemIDs) == 0 {
		return []*model.Link{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, item_ids, created_at FROM links
		WHERE item_ids && $1
		ORDER BY created_at DESC, id DESC`, itemIDs)
	if err != nil {
		return nil, apperr.FromPostgres(err, "select links")
	}
	defer rows.Close()

	out := make([]*model.Link, 0)
	for rows.Next() {
		var l model.Link
		if err := rows.Scan(&l.ID, &l.ItemIDs, &l.CreatedAt); err != nil {
			return nil, apperr.FromPostgres(err, "scan link")
		}
		l.CreatedAt = l.CreatedAt.UTC()
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromPostgres(err, "iterate links")
	}
	return out, nil
}
