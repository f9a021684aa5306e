package database

// User, token and group queries
const (
	GetUserSQL = `
		SELECT id, username, email, first_name, last_name, is_admin, created_at
		FROM users WHERE id = $1`

	GetUserByUsernameSQL = `
		SELECT id, username, email, first_name, last_name, is_admin, created_at
		FROM users WHERE username = $1`

	UserExistsSQL = `
		SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	UpsertUserSQL = `
		INSERT INTO users (username, email, is_admin)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET
			email = EXCLUDED.email,
			is_admin = EXCLUDED.is_admin
		RETURNING id`

	InsertAuthTokenSQL = `
		INSERT INTO auth_tokens (key, user_id) VALUES ($1, $2)`

	GetActorByTokenSQL = `
		SELECT u.id, u.username, u.is_admin,
			   COALESCE(array_agg(g.name) FILTER (WHERE g.name IS NOT NULL), '{}')
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		LEFT JOIN user_groups ug ON ug.user_id = u.id
		LEFT JOIN groups g ON g.id = ug.group_id
		WHERE t.key = $1
		GROUP BY u.id, u.username, u.is_admin`

	GetGroupIDForUpdateSQL = `
		SELECT id FROM groups WHERE name = $1 FOR UPDATE`

	ListGroupMembersSQL = `
		SELECT u.id, u.username, u.email
		FROM users u
		JOIN user_groups ug ON ug.user_id = u.id
		JOIN groups g ON g.id = ug.group_id
		WHERE g.name = $1
		ORDER BY u.id`

	IsGroupMemberSQL = `
		SELECT EXISTS (
			SELECT 1 FROM user_groups ug
			JOIN groups g ON g.id = ug.group_id
			WHERE ug.user_id = $1 AND g.name = $2
		)`

	AddGroupMemberSQL = `
		INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)`

	RemoveGroupMemberSQL = `
		DELETE FROM user_groups WHERE user_id = $1 AND group_id = $2`
)

// Catalog queries
const (
	ListCategoriesSQL = `
		SELECT id, name FROM categories ORDER BY id`

	GetCategorySQL = `
		SELECT id, name FROM categories WHERE id = $1`

	InsertCategorySQL = `
		INSERT INTO categories (name) VALUES ($1) RETURNING id`

	UpdateCategorySQL = `
		UPDATE categories SET name = $2 WHERE id = $1`

	DeleteCategorySQL = `
		DELETE FROM categories WHERE id = $1`

	// SelectMenuItemSQL is completed with WHERE/ORDER BY/LIMIT clauses by the catalog store.
	SelectMenuItemSQL = `
		SELECT m.id, m.title, m.price, m.inventory, m.category_id, c.name, m.featured
		FROM menu_items m
		JOIN categories c ON c.id = m.category_id`

	CountMenuItemSQL = `
		SELECT COUNT(*)
		FROM menu_items m`

	GetMenuItemForUpdateSQL = `
		SELECT id, title, price, inventory, category_id, featured
		FROM menu_items WHERE id = $1
		FOR UPDATE`

	// LockFeaturedCandidatesSQL locks the currently featured item together with the
	// target, in id order so concurrent callers acquire locks consistently.
	LockFeaturedCandidatesSQL = `
		SELECT id FROM menu_items
		WHERE featured OR id = $1
		ORDER BY id
		FOR UPDATE`

	ClearFeaturedSQL = `
		UPDATE menu_items SET featured = FALSE
		WHERE featured AND id <> $1`

	InsertMenuItemSQL = `
		INSERT INTO menu_items (title, price, inventory, category_id, featured)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	UpdateMenuItemSQL = `
		UPDATE menu_items
		SET title = $2, price = $3, inventory = $4, category_id = $5, featured = $6
		WHERE id = $1`

	DeleteMenuItemSQL = `
		DELETE FROM menu_items WHERE id = $1`

	CountFeaturedSQL = `
		SELECT COUNT(*) FROM menu_items WHERE featured`
)

// Cart queries
const (
	selectCartSQL = `
		SELECT c.id, c.user_id, u.username
		FROM carts c
		JOIN users u ON u.id = c.user_id`

	ListCartsSQL = selectCartSQL + `
		ORDER BY c.id`

	GetCartByIDSQL = selectCartSQL + `
		WHERE c.id = $1`

	GetCartByUserSQL = selectCartSQL + `
		WHERE c.user_id = $1`

	LockCartByUserSQL = `
		SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`

	LockCartSQL = `
		SELECT id FROM carts WHERE id = $1 FOR UPDATE`

	InsertCartSQL = `
		INSERT INTO carts (user_id) VALUES ($1) RETURNING id`

	EnsureCartSQL = `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`

	DeleteCartSQL = `
		DELETE FROM carts WHERE id = $1`

	selectCartItemSQL = `
		SELECT ci.id, ci.cart_id, ci.menuitem_id, m.title, m.price, ci.quantity, c.user_id, u.username
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN users u ON u.id = c.user_id
		JOIN menu_items m ON m.id = ci.menuitem_id`

	ListCartItemsByCartSQL = selectCartItemSQL + `
		WHERE ci.cart_id = $1
		ORDER BY ci.id`

	// LockCartLinesSQL reads a cart's lines for checkout and holds them until commit.
	LockCartLinesSQL = ListCartItemsByCartSQL + `
		FOR UPDATE OF ci`

	ListCartItemsByUserSQL = selectCartItemSQL + `
		WHERE c.user_id = $1
		ORDER BY ci.id`

	ListAllCartItemsSQL = selectCartItemSQL + `
		ORDER BY u.username, ci.id`

	GetCartItemSQL = selectCartItemSQL + `
		WHERE ci.id = $1`

	// UpsertCartItemSQL merges a repeated addition into the existing line.
	UpsertCartItemSQL = `
		INSERT INTO cart_items (cart_id, menuitem_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, menuitem_id) DO UPDATE
			SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id`

	InsertCartItemSQL = `
		INSERT INTO cart_items (cart_id, menuitem_id, quantity) VALUES ($1, $2, $3)`

	UpdateCartItemSQL = `
		UPDATE cart_items SET menuitem_id = $2, quantity = $3 WHERE id = $1`

	DeleteCartItemSQL = `
		DELETE FROM cart_items WHERE id = $1`

	ClearCartSQL = `
		DELETE FROM cart_items WHERE cart_id = $1`

	ListCartOwnersSQL = `
		SELECT u.id, u.username
		FROM carts c
		JOIN users u ON u.id = c.user_id
		ORDER BY u.username`
)

// Order queries
const (
	selectOrderSQL = `
		SELECT o.id, o.user_id, o.delivery_crew_id, COALESCE(dc.username, ''), o.status,
			   o.total, COALESCE(o.payment_session_id, ''), o.created_at
		FROM orders o
		LEFT JOIN users dc ON dc.id = o.delivery_crew_id`

	ListOrdersSQL = selectOrderSQL + `
		ORDER BY o.id`

	ListOrdersByUserSQL = selectOrderSQL + `
		WHERE o.user_id = $1
		ORDER BY o.id`

	ListOrdersByCrewSQL = selectOrderSQL + `
		WHERE o.delivery_crew_id = $1
		ORDER BY o.id`

	GetOrderSQL = selectOrderSQL + `
		WHERE o.id = $1`

	LockOrderSQL = GetOrderSQL + `
		FOR UPDATE OF o`

	InsertOrderSQL = `
		INSERT INTO orders (user_id, status, total)
		VALUES ($1, $2, 0)
		RETURNING id, created_at`

	InsertOrderItemSQL = `
		INSERT INTO order_items (order_id, menuitem_id, menuitem_title, quantity, unit_price, price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	SetOrderTotalSQL = `
		UPDATE orders SET total = $2 WHERE id = $1`

	UpdateOrderSQL = `
		UPDATE orders SET delivery_crew_id = $2, status = $3 WHERE id = $1`

	SetOrderPaymentSessionSQL = `
		UPDATE orders SET payment_session_id = $2 WHERE id = $1`

	DeleteOrderSQL = `
		DELETE FROM orders WHERE id = $1`

	ListOrderItemsSQL = `
		SELECT id, order_id, menuitem_id, menuitem_title, quantity, unit_price, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`
)

// Review queries
const (
	selectReviewSQL = `
		SELECT r.id, r.menuitem_id, r.user_id, u.username, r.rating, COALESCE(r.comment, ''), r.created_at
		FROM menu_item_reviews r
		JOIN users u ON u.id = r.user_id`

	ListReviewsSQL = selectReviewSQL + `
		ORDER BY r.id`

	ListReviewsByItemSQL = selectReviewSQL + `
		WHERE r.menuitem_id = $1
		ORDER BY r.id`

	GetReviewSQL = selectReviewSQL + `
		WHERE r.id = $1`

	InsertReviewSQL = `
		INSERT INTO menu_item_reviews (menuitem_id, user_id, rating, comment)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at`

	DeleteReviewSQL = `
		DELETE FROM menu_item_reviews WHERE id = $1`

	MenuItemExistsSQL = `
		SELECT EXISTS (SELECT 1 FROM menu_items WHERE id = $1)`
)
