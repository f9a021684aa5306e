// Package group manages Manager and Delivery_crew membership.
package group

import (
	"context"
	"errors"
	"fmt"

	"littlelemon/internal/access"
	"littlelemon/internal/apperr"
	"littlelemon/internal/database"
	"littlelemon/internal/logger"
	"littlelemon/internal/models"
)

// Group binds a URL slug to a group name and the operation that guards it.
type Group struct {
	Slug string
	Name string
	Op   access.Operation
}

var groups = map[string]Group{
	"manager":       {Slug: "manager", Name: models.GroupManager, Op: access.OpManageManagers},
	"delivery-crew": {Slug: "delivery-crew", Name: models.GroupDeliveryCrew, Op: access.OpManageDeliveryCrew},
}

// Lookup returns the group for a URL slug.
func Lookup(slug string) (Group, bool) {
	g, ok := groups[slug]
	return g, ok
}

type Store interface {
	ListMembers(ctx context.Context, group string) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx serializes membership changes of one group through its row lock.
type Tx interface {
	LockGroup(ctx context.Context, name string) (int64, error)
	IsMember(ctx context.Context, userID int64, group string) (bool, error)
	AddMember(ctx context.Context, userID, groupID int64) error
	// RemoveMember reports whether a membership row was deleted.
	RemoveMember(ctx context.Context, userID, groupID int64) (bool, error)
}

type Service struct {
	store  Store
	logger *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

func (s *Service) Members(ctx context.Context, actor access.Actor, g Group) ([]models.User, error) {
	if err := access.Authorize(actor, g.Op); err != nil {
		return nil, err
	}
	users, err := s.store.ListMembers(ctx, g.Name)
	if err != nil {
		return nil, translate(err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Add puts userID into g. A user already in the group is a Conflict.
func (s *Service) Add(ctx context.Context, actor access.Actor, g Group, userID int64) (*models.User, error) {
	if err := access.Authorize(actor, g.Op); err != nil {
		return nil, err
	}
	if userID <= 0 {
		return nil, apperr.Validation("user_id", "this field is required")
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("User")
		}
		return nil, translate(err)
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		groupID, err := tx.LockGroup(ctx, g.Name)
		if err != nil {
			return err
		}
		member, err := tx.IsMember(ctx, userID, g.Name)
		if err != nil {
			return err
		}
		if member {
			return alreadyMember(g)
		}
		return tx.AddMember(ctx, userID, groupID)
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, alreadyMember(g)
		}
		return nil, translate(err)
	}

	s.logger.Info("group_member_added", "User added to group", logger.RequestIDFromContext(ctx), map[string]interface{}{
		"group":    g.Name,
		"user_id":  userID,
		"added_by": actor.Name(),
	})
	return user, nil
}

// Remove takes userID out of g. NotFound if the user is not a member.
func (s *Service) Remove(ctx context.Context, actor access.Actor, g Group, userID int64) error {
	if err := access.Authorize(actor, g.Op); err != nil {
		return err
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		groupID, err := tx.LockGroup(ctx, g.Name)
		if err != nil {
			return err
		}
		removed, err := tx.RemoveMember(ctx, userID, groupID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.NotFound("User")
		}
		return nil
	})
	if err != nil {
		return translate(err)
	}

	s.logger.Info("group_member_removed", "User removed from group", logger.RequestIDFromContext(ctx), map[string]interface{}{
		"group":      g.Name,
		"user_id":    userID,
		"removed_by": actor.Name(),
	})
	return nil
}

func alreadyMember(g Group) error {
	return apperr.Conflict(fmt.Sprintf("This user is already in %s group.", g.Name))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, database.ErrNotFound):
		return apperr.NotFound("Group")
	case errors.Is(err, database.ErrForeignKey):
		return apperr.NotFound("User")
	case errors.Is(err, database.ErrConflict):
		return apperr.Retryable("Group membership changed concurrently. Please retry.", err)
	default:
		return apperr.Internal(err)
	}
}
