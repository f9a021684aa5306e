package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"littlelemon/internal/database"
	"littlelemon/internal/models"
)

// PostgresStore implements Store on top of the shared pool.
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := p.db.Query(ctx, database.ListCategoriesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (p *PostgresStore) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	if err := p.db.QueryRow(ctx, database.GetCategorySQL, id).Scan(&c.ID, &c.Name); err != nil {
		return nil, database.Classify(err)
	}
	return &c, nil
}

func (p *PostgresStore) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	c := models.Category{Name: strings.TrimSpace(name)}
	if err := p.db.QueryRow(ctx, database.InsertCategorySQL, c.Name).Scan(&c.ID); err != nil {
		return nil, database.Classify(err)
	}
	return &c, nil
}

func (p *PostgresStore) UpdateCategory(ctx context.Context, id int64, name string) error {
	tag, err := p.db.Exec(ctx, database.UpdateCategorySQL, id, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, database.DeleteCategorySQL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

var orderClauses = map[string]string{
	"":       "m.id",
	"price":  "m.price, m.id",
	"-price": "m.price DESC, m.id",
	"title":  "m.title, m.id",
	"-title": "m.title DESC, m.id",
}

// ListMenuItems returns one page of items and the total count matching the filters.
func (p *PostgresStore) ListMenuItems(ctx context.Context, q ListQuery) ([]models.MenuItem, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if q.CategoryID != nil {
		args = append(args, *q.CategoryID)
		conditions = append(conditions, fmt.Sprintf("m.category_id = $%d", len(args)))
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		conditions = append(conditions, fmt.Sprintf("m.title ILIKE $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := p.db.QueryRow(ctx, database.CountMenuItemSQL+where, args...).Scan(&count); err != nil {
		return nil, 0, database.Classify(err)
	}

	orderBy, ok := orderClauses[q.Ordering]
	if !ok {
		orderBy = orderClauses[""]
	}
	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)
	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		database.SelectMenuItemSQL, where, orderBy, len(args)-1, len(args))

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []models.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *item)
	}
	return items, count, rows.Err()
}

func (p *PostgresStore) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	item, err := scanMenuItem(p.db.QueryRow(ctx, database.SelectMenuItemSQL+" WHERE m.id = $1", id))
	if err != nil {
		return nil, database.Classify(err)
	}
	return item, nil
}

func (p *PostgresStore) DeleteMenuItem(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, database.DeleteMenuItemSQL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (p *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return p.db.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockFeaturedCandidates(ctx context.Context, targetID int64) error {
	rows, err := t.tx.Query(ctx, database.LockFeaturedCandidatesSQL, targetID)
	if err != nil {
		return database.Classify(err)
	}
	rows.Close()
	return database.Classify(rows.Err())
}

func (t *pgTx) GetMenuItemForUpdate(ctx context.Context, id int64) (*models.MenuItem, error) {
	var item models.MenuItem
	err := t.tx.QueryRow(ctx, database.GetMenuItemForUpdateSQL, id).Scan(
		&item.ID, &item.Title, &item.Price, &item.Inventory, &item.CategoryID, &item.Featured)
	if err != nil {
		return nil, database.Classify(err)
	}
	return &item, nil
}

func (t *pgTx) ClearFeatured(ctx context.Context, exceptID int64) error {
	_, err := t.tx.Exec(ctx, database.ClearFeaturedSQL, exceptID)
	return database.Classify(err)
}

func (t *pgTx) InsertMenuItem(ctx context.Context, item *models.MenuItem) error {
	err := t.tx.QueryRow(ctx, database.InsertMenuItemSQL,
		item.Title, item.Price, item.Inventory, item.CategoryID, item.Featured).Scan(&item.ID)
	return database.Classify(err)
}

func (t *pgTx) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	tag, err := t.tx.Exec(ctx, database.UpdateMenuItemSQL,
		item.ID, item.Title, item.Price, item.Inventory, item.CategoryID, item.Featured)
	if err != nil {
		return database.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func scanMenuItem(row pgx.Row) (*models.MenuItem, error) {
	var (
		item     models.MenuItem
		category models.Category
	)
	err := row.Scan(&item.ID, &item.Title, &item.Price, &item.Inventory, &item.CategoryID, &category.Name, &item.Featured)
	if err != nil {
		return nil, err
	}
	category.ID = item.CategoryID
	item.Category = &category
	return &item, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
