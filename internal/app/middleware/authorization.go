package middleware

import (
	"context"
	"errors"

	"stayhub/internal/app/commands"
	"stayhub/internal/app/policies"
	"stayhub/internal/app/queries"
	"stayhub/internal/domain/booking"
)

var ErrActorMissing = errors.New("middleware: actor missing")

// ActorScoped is implemented by messages issued on behalf of a user.
type ActorScoped interface {
	ActorID() booking.UserID
}

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ActorAuthorizer rejects messages whose actor is unknown to the user directory.
// Ownership checks happen in the booking lifecycle once the booking is loaded.
type ActorAuthorizer struct {
	Users policies.UserLookup
}

func (a ActorAuthorizer) Authorize(ctx context.Context, message any) error {
	scoped, ok := message.(ActorScoped)
	if !ok {
		return nil
	}
	id := scoped.ActorID()
	if id == "" {
		return ErrActorMissing
	}
	exists, err := a.Users.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return booking.ErrUnauthorized
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
