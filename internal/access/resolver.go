package access

import (
	"context"
	"errors"
	"strings"

	"littlelemon/internal/apperr"
	"littlelemon/internal/database"
)

// TokenLookup resolves an API token to an actor.
type TokenLookup interface {
	ActorByToken(ctx context.Context, key string) (Actor, error)
}

// Resolver turns an Authorization header into an Actor, once per request.
type Resolver struct {
	tokens TokenLookup
}

func NewResolver(tokens TokenLookup) *Resolver {
	return &Resolver{tokens: tokens}
}

// Resolve returns the anonymous actor for an empty header and Unauthenticated for a
// malformed or unknown token. The accepted form is "Token <key>".
func (r *Resolver) Resolve(ctx context.Context, header string) (Actor, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Actor{}, nil
	}

	scheme, key, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Token") || strings.TrimSpace(key) == "" {
		return Actor{}, apperr.Unauthenticated("Invalid token header.")
	}

	actor, err := r.tokens.ActorByToken(ctx, strings.TrimSpace(key))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return Actor{}, apperr.Unauthenticated("Invalid token.")
		}
		return Actor{}, apperr.Internal(err)
	}
	return actor, nil
}

// PostgresTokens looks tokens up in auth_tokens.
type PostgresTokens struct {
	db *database.DB
}

func NewPostgresTokens(db *database.DB) *PostgresTokens {
	return &PostgresTokens{db: db}
}

func (p *PostgresTokens) ActorByToken(ctx context.Context, key string) (Actor, error) {
	var (
		actor   Actor
		isAdmin bool
		groups  []string
	)
	err := p.db.QueryRow(ctx, database.GetActorByTokenSQL, key).Scan(&actor.UserID, &actor.Username, &isAdmin, &groups)
	if err != nil {
		return Actor{}, database.Classify(err)
	}
	actor.Caps = CapabilitiesFor(isAdmin, groups)
	return actor, nil
}
