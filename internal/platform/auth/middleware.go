package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/hanko-field/order-admin/internal/platform/httpx"
)

var (
	// ErrTokenExpired reports an expired Firebase ID token.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid reports any other verification failure.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns bearer tokens into an Identity on the request context.
type Authenticator struct {
	verifier     TokenVerifier
	roleClaim    string
	fallbackRole string
	timeout      time.Duration
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithRoleClaim reads roles from claim instead of "role".
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithFallbackRole grants role to tokens that carry no role claim.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		if role = normaliseRole(role); role != "" {
			a.fallbackRole = role
		}
	}
}

// WithVerificationTimeout bounds each verification call.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator wraps verifier. Tokens without roles are treated as RoleUser.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:     verifier,
		roleClaim:    claimRole,
		fallbackRole: RoleUser,
		timeout:      5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth authenticates the bearer token, then applies RequireRole(allowedRoles...).
// Authentication failures answer 401 and role failures 403.
func (a *Authenticator) RequireFirebaseAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	checkRole := RequireRole(allowedRoles...)
	return func(next http.Handler) http.Handler {
		guarded := checkRole(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, apiErr := a.authenticate(r)
			if identity == nil {
				httpx.WriteError(r.Context(), w, apiErr)
				return
			}
			guarded.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// authenticate returns a nil identity together with the error to send.
func (a *Authenticator) authenticate(r *http.Request) (*Identity, httpx.Error) {
	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, unauthenticated("authorization header missing or invalid")
	}
	if a == nil || a.verifier == nil {
		return nil, unauthenticated("authorization service unavailable")
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	token, err := a.verifier.VerifyIDToken(ctx, raw)
	if err != nil {
		return nil, verificationError(err)
	}

	identity := &Identity{
		UID:    token.UID,
		Email:  stringClaim(token.Claims, claimEmail),
		Locale: stringClaim(token.Claims, claimLocale),
		Roles:  parseRoles(token.Claims[a.roleClaim]),
	}
	if len(identity.Roles) == 0 && a.fallbackRole != "" {
		identity.Roles = []string{a.fallbackRole}
	}
	return identity, httpx.Error{}
}

// RequireRole admits requests whose identity holds one of roles, or any identity when roles is
// empty. It must run after RequireFirebaseAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	var allowed []string
	for _, role := range roles {
		if role = normaliseRole(role); role != "" {
			allowed = append(allowed, role)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			switch {
			case !ok:
				httpx.WriteError(r.Context(), w, unauthenticated("authentication required"))
			case len(allowed) > 0 && !identity.HasAnyRole(allowed...):
				httpx.WriteError(r.Context(), w, httpx.NewError("insufficient_role", "identity does not have required role", http.StatusForbidden))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func unauthenticated(message string) httpx.Error {
	return httpx.NewError("unauthenticated", message, http.StatusUnauthorized)
}

func verificationError(err error) httpx.Error {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		return httpx.NewError("token_expired", "firebase id token expired", http.StatusUnauthorized)
	case errors.Is(err, ErrTokenRevoked):
		return httpx.NewError("token_revoked", "firebase session revoked", http.StatusUnauthorized)
	}
	return httpx.NewError("invalid_token", "firebase id token invalid", http.StatusUnauthorized)
}
