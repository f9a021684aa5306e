package cart

import (
	"context"

	"github.com/jackc/pgx/v5"

	"littlelemon/internal/database"
	"littlelemon/internal/models"
)

type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) ListCarts(ctx context.Context) ([]models.Cart, error) {
	rows, err := p.db.Query(ctx, database.ListCartsSQL)
	if err != nil {
		return nil, err
	}
	var carts []models.Cart
	for rows.Next() {
		var c models.Cart
		if err := rows.Scan(&c.ID, &c.UserID, &c.Username); err != nil {
			rows.Close()
			return nil, err
		}
		carts = append(carts, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := p.queryItems(ctx, database.ListAllCartItemsSQL)
	if err != nil {
		return nil, err
	}
	byCart := make(map[int64][]models.CartItem)
	for _, item := range items {
		byCart[item.CartID] = append(byCart[item.CartID], item)
	}
	for i := range carts {
		carts[i].Items = nonNil(byCart[carts[i].ID])
	}
	return carts, nil
}

func (p *PostgresStore) GetCart(ctx context.Context, id int64) (*models.Cart, error) {
	return p.getCart(ctx, database.GetCartByIDSQL, id)
}

func (p *PostgresStore) GetCartByUser(ctx context.Context, userID int64) (*models.Cart, error) {
	return p.getCart(ctx, database.GetCartByUserSQL, userID)
}

func (p *PostgresStore) getCart(ctx context.Context, query string, arg int64) (*models.Cart, error) {
	var c models.Cart
	if err := p.db.QueryRow(ctx, query, arg).Scan(&c.ID, &c.UserID, &c.Username); err != nil {
		return nil, database.Classify(err)
	}
	items, err := p.queryItems(ctx, database.ListCartItemsByCartSQL, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = nonNil(items)
	return &c, nil
}

func (p *PostgresStore) CreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var id int64
	if err := p.db.QueryRow(ctx, database.InsertCartSQL, userID).Scan(&id); err != nil {
		return nil, database.Classify(err)
	}
	return p.GetCart(ctx, id)
}

func (p *PostgresStore) EnsureCart(ctx context.Context, userID int64) (*models.Cart, error) {
	if _, err := p.db.Exec(ctx, database.EnsureCartSQL, userID); err != nil {
		return nil, err
	}
	return p.GetCartByUser(ctx, userID)
}

func (p *PostgresStore) DeleteCart(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, database.DeleteCartSQL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListAllItems(ctx context.Context) ([]models.CartItem, error) {
	return p.queryItems(ctx, database.ListAllCartItemsSQL)
}

func (p *PostgresStore) ListItemsByUser(ctx context.Context, userID int64) ([]models.CartItem, error) {
	return p.queryItems(ctx, database.ListCartItemsByUserSQL, userID)
}

func (p *PostgresStore) ListOwners(ctx context.Context) (map[int64]string, error) {
	rows, err := p.db.Query(ctx, database.ListCartOwnersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owners := make(map[int64]string)
	for rows.Next() {
		var (
			id       int64
			username string
		)
		if err := rows.Scan(&id, &username); err != nil {
			return nil, err
		}
		owners[id] = username
	}
	return owners, rows.Err()
}

func (p *PostgresStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	if err := p.db.QueryRow(ctx, database.UserExistsSQL, userID).Scan(&exists); err != nil {
		return false, database.Classify(err)
	}
	return exists, nil
}

func (p *PostgresStore) GetItem(ctx context.Context, id int64) (*models.CartItem, error) {
	item, err := scanItem(p.db.QueryRow(ctx, database.GetCartItemSQL, id))
	if err != nil {
		return nil, database.Classify(err)
	}
	return item, nil
}

func (p *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return p.db.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (p *PostgresStore) queryItems(ctx context.Context, query string, args ...interface{}) ([]models.CartItem, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockCart(ctx context.Context, cartID int64) error {
	var id int64
	return database.Classify(t.tx.QueryRow(ctx, database.LockCartSQL, cartID).Scan(&id))
}

func (t *pgTx) ClearCart(ctx context.Context, cartID int64) error {
	_, err := t.tx.Exec(ctx, database.ClearCartSQL, cartID)
	return database.Classify(err)
}

func (t *pgTx) InsertItem(ctx context.Context, cartID, menuItemID int64, quantity int) error {
	_, err := t.tx.Exec(ctx, database.InsertCartItemSQL, cartID, menuItemID, quantity)
	return database.Classify(err)
}

func (t *pgTx) AddItem(ctx context.Context, cartID, menuItemID int64, quantity int) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, database.UpsertCartItemSQL, cartID, menuItemID, quantity).Scan(&id); err != nil {
		return 0, database.Classify(err)
	}
	return id, nil
}

func (t *pgTx) UpdateItem(ctx context.Context, id, menuItemID int64, quantity int) error {
	tag, err := t.tx.Exec(ctx, database.UpdateCartItemSQL, id, menuItemID, quantity)
	if err != nil {
		return database.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteItem(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, database.DeleteCartItemSQL, id)
	if err != nil {
		return database.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (*models.CartItem, error) {
	var item models.CartItem
	err := row.Scan(&item.ID, &item.CartID, &item.MenuItemID, &item.Title, &item.UnitPrice,
		&item.Quantity, &item.UserID, &item.Username)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
