package indicator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestClient_FetchTodayRate(t *testing.T) {
	t.Run("uses most recent series entry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"codigo": "uf",
				"nombre": "Unidad de fomento (UF)",
				"serie": [
					{"fecha": "2026-08-28T04:00:00.000Z", "valor": 38912.45},
					{"fecha": "2026-08-27T04:00:00.000Z", "valor": 38900.10}
				]
			}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, zap.NewNop())
		snap := client.FetchTodayRate(context.Background())

		assert.True(t, snap.Success)
		assert.Equal(t, 38912.45, snap.Rate)
		assert.Equal(t, 2026, snap.Date.Year())
		assert.Empty(t, snap.Err)
	})

	t.Run("malformed payload never throws", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json at all`))
		}))
		defer server.Close()

		client := NewClient(server.URL, zap.NewNop())
		snap := client.FetchTodayRate(context.Background())

		assert.False(t, snap.Success)
		assert.Zero(t, snap.Rate)
		assert.NotEmpty(t, snap.Err)
		assert.WithinDuration(t, time.Now(), snap.Date, time.Minute)
	})

	t.Run("empty series marked unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"serie": []}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, zap.NewNop())
		snap := client.FetchTodayRate(context.Background())

		assert.False(t, snap.Success)
		assert.Zero(t, snap.Rate)
	})

	t.Run("server error marked unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient(server.URL, zap.NewNop())
		snap := client.FetchTodayRate(context.Background())

		assert.False(t, snap.Success)
	})

	t.Run("unreachable host marked unavailable", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", zap.NewNop())
		snap := client.FetchTodayRate(context.Background())

		assert.False(t, snap.Success)
		assert.NotEmpty(t, snap.Err)
	})
}
