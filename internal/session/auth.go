package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rebuildcl/inspector/internal/api"
)

// ErrBadCredentials is returned by Login on a rejected email/password pair.
var ErrBadCredentials = errors.New("session: invalid credentials")

// Authenticator exchanges credentials for a token and keeps the local
// store in sync with the backend's view of the session.
type Authenticator struct {
	client *api.Client
	store  *Store
	logger *zap.Logger
}

// NewAuthenticator creates an authenticator over the given client and store.
func NewAuthenticator(client *api.Client, store *Store, logger *zap.Logger) *Authenticator {
	return &Authenticator{client: client, store: store, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Profile struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"profile"`
}

// Login authenticates against the backend and persists the session.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp loginResponse
	err := a.client.PostJSON(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		if api.StatusOf(err) == http.StatusUnauthorized {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	sess := Session{
		Token:     resp.Token,
		ProfileID: resp.Profile.ID,
		Email:     resp.Profile.Email,
		Name:      resp.Profile.Name,
	}
	if err := a.store.Save(sess); err != nil {
		return nil, err
	}

	a.logger.Info("Login successful", zap.String("profile_id", sess.ProfileID))
	return &sess, nil
}

// Check validates the stored token against the backend. A 401 clears the
// local session so the caller falls back to the login screen.
func (a *Authenticator) Check(ctx context.Context) (bool, error) {
	if a.store.Token() == "" {
		return false, nil
	}

	var resp struct {
		Valid bool `json:"valid"`
	}
	err := a.client.GetJSON(ctx, "/auth/check", &resp)
	if err != nil {
		if api.StatusOf(err) == http.StatusUnauthorized {
			a.logger.Warn("Stored token rejected, clearing session")
			if clearErr := a.store.Clear(); clearErr != nil {
				return false, clearErr
			}
			return false, nil
		}
		return false, fmt.Errorf("session check: %w", err)
	}
	return resp.Valid, nil
}

// Logout tells the backend to revoke the token, then clears local state.
// The local session is cleared even when the revoke call fails, so a dead
// backend cannot trap the user in a logged-in state.
func (a *Authenticator) Logout(ctx context.Context) error {
	if err := a.client.PostJSON(ctx, "/auth/logout", nil, nil); err != nil {
		a.logger.Warn("Logout request failed, clearing session anyway", zap.Error(err))
	}
	return a.store.Clear()
}
