package group

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

func (p *PostgresStore) ListMembers(ctx context.Context, group string) ([]models.User, error) {
	rows, err := p.db.Query(ctx, database.ListGroupMembersSQL, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (p *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := p.db.QueryRow(ctx, database.GetUserSQL, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, database.Classify(err)
	}
	return &u, nil
}

func (p *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return p.db.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockGroup(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, database.GetGroupIDForUpdateSQL, name).Scan(&id); err != nil {
		return 0, database.Classify(err)
	}
	return id, nil
}

func (t *pgTx) IsMember(ctx context.Context, userID int64, group string) (bool, error) {
	var member bool
	if err := t.tx.QueryRow(ctx, database.IsGroupMemberSQL, userID, group).Scan(&member); err != nil {
		return false, database.Classify(err)
	}
	return member, nil
}

func (t *pgTx) AddMember(ctx context.Context, userID, groupID int64) error {
	_, err := t.tx.Exec(ctx, database.AddGroupMemberSQL, userID, groupID)
	return database.Classify(err)
}

func (t *pgTx) RemoveMember(ctx context.Context, userID, groupID int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, database.RemoveGroupMemberSQL, userID, groupID)
	if err != nil {
		return false, database.Classify(err)
	}
	return tag.RowsAffected() > 0, nil
}
