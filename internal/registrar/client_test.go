package registrar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerAddress = "0xC0FFEE00000000000000000000000000000000aa"

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, "test-key", ownerAddress)
}

func TestCheckOwnership(t *testing.T) {
	t.Run("404 means unregistered, not an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		own, err := client.CheckOwnership(context.Background(), "free.her")
		require.NoError(t, err)
		assert.False(t, own.Exists)
		assert.True(t, own.Available)
		assert.False(t, own.OwnedByUs)
	})

	t.Run("owner comparison is case-insensitive", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"name":  "ours.her",
				"owner": "0xC0FFEE00000000000000000000000000000000AA",
			})
		})

		own, err := client.CheckOwnership(context.Background(), "Ours.Her")
		require.NoError(t, err)
		assert.True(t, own.Exists)
		assert.True(t, own.OwnedByUs)
	})

	t.Run("third party owner", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"name":  "taken.her",
				"owner": "0xdeadbeef",
			})
		})

		own, err := client.CheckOwnership(context.Background(), "taken.her")
		require.NoError(t, err)
		assert.True(t, own.Exists)
		assert.False(t, own.OwnedByUs)
		assert.Equal(t, "0xdeadbeef", own.OwnerRef)
	})

	t.Run("5xx surfaces as typed error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"message":"registry melted"}`))
		})

		_, err := client.CheckOwnership(context.Background(), "broken.her")
		require.Error(t, err)
		var regErr *Error
		require.ErrorAs(t, err, &regErr)
		assert.Equal(t, http.StatusBadGateway, regErr.StatusCode)
		assert.Contains(t, regErr.Message, "registry melted")
	})
}

func TestReserveAndTransfer(t *testing.T) {
	t.Run("reserve returns operation id", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/domains/alice.her/reserve", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"operation": map[string]string{"id": "op-res-1", "status": "PENDING"},
			})
		})

		ref, err := client.Reserve(context.Background(), "alice.her")
		require.NoError(t, err)
		assert.Equal(t, "op-res-1", ref.ID)
	})

	t.Run("transfer sends lowercased wallet", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/domains/alice.her/transfer", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "0xabc123", body["to"])
			_ = json.NewEncoder(w).Encode(map[string]any{
				"operation": map[string]string{"id": "op-tr-1"},
			})
		})

		ref, err := client.TransferOwnership(context.Background(), "alice.her", "0xABC123")
		require.NoError(t, err)
		assert.Equal(t, "op-tr-1", ref.ID)
	})
}

func TestPollOperations(t *testing.T) {
	t.Run("one failing id does not fail the batch", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/operations/good":
				_ = json.NewEncoder(w).Encode(map[string]any{
					"id": "good", "status": "COMPLETED", "domain": "alice.her",
				})
			default:
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"message":"boom"}`))
			}
		})

		results, err := client.PollOperations(context.Background(), []string{"good", "bad"})
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "good", results[0].OperationID)
		assert.Equal(t, "COMPLETED", results[0].Status)
		assert.Equal(t, "alice.her", results[0].Detail["domain"])

		assert.Equal(t, "bad", results[1].OperationID)
		assert.Equal(t, "ERROR", results[1].Status)
		assert.Contains(t, results[1].Detail["error"], "boom")
	})

	t.Run("requests are issued concurrently per id", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "x", "status": "PENDING"})
		})

		ids := []string{"a", "b", "c", "d"}
		results, err := client.PollOperations(context.Background(), ids)
		require.NoError(t, err)
		assert.Len(t, results, len(ids))
		assert.Equal(t, int32(len(ids)), calls.Load())
	})
}
