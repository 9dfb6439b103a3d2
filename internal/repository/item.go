package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dharsanguruparan/vaultlink/internal/apperr"
	"github.com/dharsanguruparan/vaultlink/internal/model"
)

const itemColumns = `id, file_id, file_unique_id, name, size, mime_type, kind, message_id, channel_id, caption, metadata, keywords, created_at`

// ItemRepository wraps the SQL for the items table.
type ItemRepository struct {
	db DBTX
}

// NewItemRepository constructs a repository.
func NewItemRepository(db DBTX) *ItemRepository {
	return &ItemRepository{db: db}
}

// InsertIfAbsent inserts item unless its file_unique_id exists. The unique
// constraint makes the check atomic; on conflict the stored row is returned.
func (r *ItemRepository) InsertIfAbsent(ctx context.Context, item *model.Item) (*model.Item, bool, error) {
	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	keywords := item.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (file_unique_id) DO NOTHING
		RETURNING `+itemColumns,
		id, item.FileID, item.FileUniqueID, item.Name, item.Size, item.MimeType, string(item.Kind),
		item.MessageID, item.ChannelID, item.Caption, item.Metadata, keywords, createdAt)
	stored, err := scanItem(row)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, apperr.FromPostgres(err, "insert item")
	}

	existing, err := scanItem(r.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE file_unique_id=$1`, item.FileUniqueID))
	if err != nil {
		return nil, false, apperr.FromPostgres(err, "select existing item")
	}
	return existing, false, nil
}

// FindByID returns one item.
func (r *ItemRepository) FindByID(ctx context.Context, id string) (*model.Item, error) {
	it, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("item %s not found", id)
		}
		return nil, apperr.FromPostgres(err, "select item")
	}
	return it, nil
}

// FindByIDs returns the items that exist among ids. Order is unspecified.
func (r *ItemRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Item, error) {
	if len(ids) == 0 {
		return []*model.Item{}, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, apperr.FromPostgres(err, "select items")
	}
	return collectItems(rows)
}

// SearchItems filters items by a case-insensitive substring of name,
// caption, title or any keyword, newest first, and reports the total match
// count.
func (r *ItemRepository) SearchItems(ctx context.Context, query string, offset, limit int) ([]*model.Item, int, error) {
	pattern := "%" + escapeLike(query) + "%"
	const filter = `
		name ILIKE $1
		OR caption ILIKE $1
		OR metadata->>'title' ILIKE $1
		OR EXISTS (SELECT 1 FROM unnest(keywords) AS k WHERE k ILIKE $1)`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM items WHERE `+filter, pattern).Scan(&total); err != nil {
		return nil, 0, apperr.FromPostgres(err, "count items")
	}
	if total == 0 {
		return []*model.Item{}, 0, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE `+filter+`
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3`, pattern, offset, limit)
	if err != nil {
		return nil, 0, apperr.FromPostgres(err, "search items")
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func scanItem(row pgx.Row) (*model.Item, error) {
	var (
		it   model.Item
		kind string
	)
	if err := row.Scan(&it.ID, &it.FileID, &it.FileUniqueID, &it.Name, &it.Size, &it.MimeType, &kind,
		&it.MessageID, &it.ChannelID, &it.Caption, &it.Metadata, &it.Keywords, &it.CreatedAt); err != nil {
		return nil, err
	}
	it.Kind = model.Kind(kind)
	it.CreatedAt = it.CreatedAt.UTC()
	return &it, nil
}

func collectItems(rows pgx.Rows) ([]*model.Item, error) {
	defer rows.Close()
	out := make([]*model.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, apperr.FromPostgres(err, "scan item")
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromPostgres(err, "iterate items")
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralises LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
