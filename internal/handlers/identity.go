package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gitshopapp/storefront/internal/auth"
	"github.com/gitshopapp/storefront/internal/services"
	"github.com/gitshopapp/storefront/internal/session"
)

type identityContextKey struct{}

// Identity is who a cart request acts for. AnonymousID is the session's
// anonymous cart owner and may be set for members too.
type Identity struct {
	Member      *auth.Member
	AnonymousID string
}

// Owner returns the cart owner: the member when signed in, the anonymous
// session otherwise.
func (i Identity) Owner() services.Owner {
	if i.Member != nil {
		return services.Owner{MemberID: i.Member.ID}
	}
	return services.Owner{AnonymousID: i.AnonymousID}
}

func identityFromContext(ctx context.Context) Identity {
	identity, _ := ctx.Value(identityContextKey{}).(Identity)
	return identity
}

// ResolveIdentity verifies a bearer token when one is sent and otherwise
// makes sure the visitor has an anonymous session. It expects
// SessionMiddleware to have run.
func (h *Handlers) ResolveIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var identity Identity

		existing := session.FromContext(ctx)

		member, err := h.members.FromRequest(r)
		switch {
		case err == nil:
			identity.Member = &member
			if existing != nil {
				identity.AnonymousID = existing.AnonymousID
			}
		case errors.Is(err, auth.ErrMissingToken):
			data := existing
			if data == nil {
				var sessErr error
				data, sessErr = h.sessionManager.Ensure(ctx, w, r)
				if sessErr != nil {
					h.writeError(w, r, sessErr)
					return
				}
				ctx = session.WithData(ctx, data)
			}
			identity.AnonymousID = data.AnonymousID
		default:
			h.loggerFromContext(ctx).Warn("rejected member token", "error", err)
			h.writeError(w, r, err)
			return
		}

		ctx = context.WithValue(ctx, identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireMember rejects requests without a verified member token. It must
// run after ResolveIdentity.
func (h *Handlers) RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identityFromContext(r.Context()).Member == nil {
			h.writeError(w, r, auth.ErrMissingToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}
