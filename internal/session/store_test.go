package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rebuildcl/inspector/internal/api"
	"github.com/rebuildcl/inspector/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewStore(db, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, "", store.Token())
	assert.Nil(t, store.Current())

	sess := Session{Token: "tok-1", ProfileID: "prof-1", Email: "ins@example.cl", Name: "Ana"}
	require.NoError(t, store.Save(sess))

	assert.Equal(t, "tok-1", store.Token())
	current := store.Current()
	require.NotNil(t, current)
	assert.Equal(t, "prof-1", current.ProfileID)

	// Saving again overwrites the single row.
	require.NoError(t, store.Save(Session{Token: "tok-2", ProfileID: "prof-1", Email: "ins@example.cl", Name: "Ana"}))
	assert.Equal(t, "tok-2", store.Token())
}

func TestStore_Clear(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(Session{Token: "tok", ProfileID: "p", Email: "e", Name: "n"}))
	require.NoError(t, store.Clear())

	assert.Equal(t, "", store.Token())
	assert.Nil(t, store.Current())

	// Clearing an already-empty store is fine.
	require.NoError(t, store.Clear())
}

func TestAuthenticator_Login(t *testing.T) {
	t.Run("success persists session", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/login", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token":"tok-x","profile":{"id":"prof-9","email":"ins@example.cl","name":"Ana"}}`))
		}))
		defer server.Close()

		store := newTestStore(t)
		client := api.NewClient(server.URL, store, zap.NewNop())
		auth := NewAuthenticator(client, store, zap.NewNop())

		sess, err := auth.Login(context.Background(), "ins@example.cl", "secret")
		require.NoError(t, err)
		assert.Equal(t, "tok-x", sess.Token)
		assert.Equal(t, "tok-x", store.Token())
	})

	t.Run("401 maps to bad credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		}))
		defer server.Close()

		store := newTestStore(t)
		client := api.NewClient(server.URL, store, zap.NewNop())
		auth := NewAuthenticator(client, store, zap.NewNop())

		_, err := auth.Login(context.Background(), "ins@example.cl", "wrong")
		assert.ErrorIs(t, err, ErrBadCredentials)
		assert.Equal(t, "", store.Token())
	})
}

func TestAuthenticator_Check(t *testing.T) {
	t.Run("rejected token clears the session", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"expired"}`, http.StatusUnauthorized)
		}))
		defer server.Close()

		store := newTestStore(t)
		require.NoError(t, store.Save(Session{Token: "stale", ProfileID: "p", Email: "e", Name: "n"}))

		client := api.NewClient(server.URL, store, zap.NewNop())
		auth := NewAuthenticator(client, store, zap.NewNop())

		valid, err := auth.Check(context.Background())
		require.NoError(t, err)
		assert.False(t, valid)
		assert.Equal(t, "", store.Token())
	})

	t.Run("no stored token skips the network", func(t *testing.T) {
		store := newTestStore(t)
		client := api.NewClient("http://127.0.0.1:0", store, zap.NewNop())
		auth := NewAuthenticator(client, store, zap.NewNop())

		valid, err := auth.Check(context.Background())
		require.NoError(t, err)
		assert.False(t, valid)
	})
}

func TestAuthenticator_Logout(t *testing.T) {
	// Logout clears locally even when the backend is unreachable.
	store := newTestStore(t)
	require.NoError(t, store.Save(Session{Token: "tok", ProfileID: "p", Email: "e", Name: "n"}))

	client := api.NewClient("http://127.0.0.1:0", store, zap.NewNop())
	auth := NewAuthenticator(client, store, zap.NewNop())

	require.NoError(t, auth.Logout(context.Background()))
	assert.Equal(t, "", store.Token())
}
