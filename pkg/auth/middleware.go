package auth

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
)

// Guard wraps route handlers with bearer-token authentication and role checks.
type Guard struct {
	verifier TokenVerifier
}

func NewGuard(verifier TokenVerifier) *Guard {
	return &Guard{verifier: verifier}
}

// Require authenticates the request and admits only the given roles. With
// no roles, any authenticated caller is admitted.
func (g *Guard) Require(next httprouter.Handle, roles ...Role) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token, ok := bearerToken(r)
		if !ok {
			httputil.WriteError(w, apperrors.Unauthorized("Authorization header must be 'Bearer <token>'"))
			return
		}

		id, err := g.verifier.Verify(token)
		if err != nil {
			httputil.WriteError(w, apperrors.Unauthorized("Token is invalid or expired"))
			return
		}

		if len(roles) > 0 && !id.HasRole(roles...) {
			httputil.WriteError(w, apperrors.Forbidden("You do not have permission to perform this action"))
			return
		}

		next(w, r.WithContext(WithIdentity(r.Context(), id)), ps)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, found && token != ""
}
