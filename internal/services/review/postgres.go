package review

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

func (p *PostgresStore) ListReviews(ctx context.Context, menuItemID *int64) ([]models.Review, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if menuItemID != nil {
		rows, err = p.db.Query(ctx, database.ListReviewsByItemSQL, *menuItemID)
	} else {
		rows, err = p.db.Query(ctx, database.ListReviewsSQL)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *r)
	}
	return reviews, rows.Err()
}

func (p *PostgresStore) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	r, err := scanReview(p.db.QueryRow(ctx, database.GetReviewSQL, id))
	if err != nil {
		return nil, database.Classify(err)
	}
	return r, nil
}

func (p *PostgresStore) MenuItemExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := p.db.QueryRow(ctx, database.MenuItemExistsSQL, id).Scan(&exists); err != nil {
		return false, database.Classify(err)
	}
	return exists, nil
}

func (p *PostgresStore) InsertReview(ctx context.Context, r *models.Review) error {
	err := p.db.QueryRow(ctx, database.InsertReviewSQL, r.MenuItemID, r.UserID, r.Rating, r.Comment).
		Scan(&r.ID, &r.CreatedAt)
	return database.Classify(err)
}

func (p *PostgresStore) DeleteReview(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, database.DeleteReviewSQL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func scanReview(row pgx.Row) (*models.Review, error) {
	var r models.Review
	if err := row.Scan(&r.ID, &r.MenuItemID, &r.UserID, &r.Username, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
