package auth

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/hanko-field/order-admin/internal/platform/config"
)

// ErrTokenRevoked signals that the user's refresh tokens were revoked after the ID token was issued.
var ErrTokenRevoked = errors.New("auth: firebase id token revoked")

type idTokenClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier verifies ID tokens through the Firebase Admin SDK and normalises SDK errors
// to ErrTokenExpired, ErrTokenRevoked and ErrTokenInvalid. The SDK honours
// FIREBASE_AUTH_EMULATOR_HOST.
type FirebaseVerifier struct {
	client       idTokenClient
	checkRevoked bool
}

// FirebaseOption customises FirebaseVerifier instances.
type FirebaseOption func(*FirebaseVerifier)

// WithRevocationCheck makes every verification consult Firebase for revoked sessions. This
// costs one Admin API round trip per request.
func WithRevocationCheck() FirebaseOption {
	return func(v *FirebaseVerifier) { v.checkRevoked = true }
}

// NewFirebaseVerifier initialises a Firebase app for cfg.ProjectID.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	return newFirebaseVerifier(client, opts...), nil
}

func newFirebaseVerifier(client idTokenClient, opts ...FirebaseOption) *FirebaseVerifier {
	v := &FirebaseVerifier{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// VerifyIDToken implements TokenVerifier. The deadline comes from ctx; the Authenticator sets it.
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialised")
	}
	var (
		token *firebaseauth.Token
		err   error
	)
	if v.checkRevoked {
		token, err = v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	} else {
		token, err = v.client.VerifyIDToken(ctx, idToken)
	}
	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case firebaseauth.IsIDTokenExpired(err):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case firebaseauth.IsIDTokenRevoked(err), firebaseauth.IsUserDisabled(err):
		return nil, fmt.Errorf("%w: %v", ErrTokenRevoked, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
