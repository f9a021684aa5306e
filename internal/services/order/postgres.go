package order

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"littlelemon/internal/access"
	"littlelemon/internal/database"
	"littlelemon/internal/models"
)

type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) ListOrders(ctx context.Context, scope access.Scope, userID int64) ([]models.Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch scope {
	case access.ScopeAll:
		rows, err = p.db.Query(ctx, database.ListOrdersSQL)
	case access.ScopeAssigned:
		rows, err = p.db.Query(ctx, database.ListOrdersByCrewSQL, userID)
	default:
		rows, err = p.db.Query(ctx, database.ListOrdersByUserSQL, userID)
	}
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := p.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (p *PostgresStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, err := scanOrder(p.db.QueryRow(ctx, database.GetOrderSQL, id))
	if err != nil {
		return nil, database.Classify(err)
	}
	orders := []models.Order{*o}
	if err := p.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (p *PostgresStore) IsDeliveryCrew(ctx context.Context, userID int64) (bool, error) {
	var member bool
	err := p.db.QueryRow(ctx, database.IsGroupMemberSQL, userID, models.GroupDeliveryCrew).Scan(&member)
	if err != nil {
		return false, database.Classify(err)
	}
	return member, nil
}

func (p *PostgresStore) SetPaymentSession(ctx context.Context, id int64, sessionID string) error {
	tag, err := p.db.Exec(ctx, database.SetOrderPaymentSessionSQL, id, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, database.DeleteOrderSQL, id)
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

// attachItems loads the items of all orders with one query.
func (p *PostgresStore) attachItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []models.OrderItem{}
	}

	rows, err := p.db.Query(ctx, database.ListOrderItemsSQL, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Title,
			&item.Quantity, &item.UnitPrice, &item.Price)
		if err != nil {
			return err
		}
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockCartByUser(ctx context.Context, userID int64) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, database.LockCartByUserSQL, userID).Scan(&id); err != nil {
		return 0, database.Classify(err)
	}
	return id, nil
}

func (t *pgTx) CartLines(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	rows, err := t.tx.Query(ctx, database.LockCartLinesSQL, cartID)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()

	var lines []models.CartItem
	for rows.Next() {
		var line models.CartItem
		err := rows.Scan(&line.ID, &line.CartID, &line.MenuItemID, &line.Title, &line.UnitPrice,
			&line.Quantity, &line.UserID, &line.Username)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, database.Classify(rows.Err())
}

func (t *pgTx) ClearCart(ctx context.Context, cartID int64) error {
	_, err := t.tx.Exec(ctx, database.ClearCartSQL, cartID)
	return database.Classify(err)
}

func (t *pgTx) InsertOrder(ctx context.Context, o *models.Order) error {
	err := t.tx.QueryRow(ctx, database.InsertOrderSQL, o.UserID, int16(o.Status)).Scan(&o.ID, &o.CreatedAt)
	return database.Classify(err)
}

func (t *pgTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	err := t.tx.QueryRow(ctx, database.InsertOrderItemSQL,
		item.OrderID, item.MenuItemID, item.Title, item.Quantity, item.UnitPrice, item.Price,
	).Scan(&item.ID)
	return database.Classify(err)
}

func (t *pgTx) SetTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, database.SetOrderTotalSQL, orderID, total)
	return database.Classify(err)
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, database.LockOrderSQL, id))
	if err != nil {
		return nil, database.Classify(err)
	}
	return o, nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *models.Order) error {
	tag, err := t.tx.Exec(ctx, database.UpdateOrderSQL, o.ID, o.DeliveryCrewID, int16(o.Status))
	if err != nil {
		return database.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o      models.Order
		status int16
	)
	err := row.Scan(&o.ID, &o.UserID, &o.DeliveryCrewID, &o.DeliveryCrewName, &status,
		&o.Total, &o.PaymentSessionID, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	return &o, nil
}
