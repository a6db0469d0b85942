package tapestry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-key", 5*time.Second)
}

func TestFindOrCreateProfile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/profiles/findOrCreate", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))

		var params ProfileParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "alice", params.Username)

		json.NewEncoder(w).Encode(Profile{ID: "p-1", Username: params.Username})
	})

	profile, err := client.FindOrCreateProfile(context.Background(), ProfileParams{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "p-1", profile.ID)
	assert.Equal(t, "alice", profile.Username)
}

func TestCreateFollowBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/followers/add", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["startId"])
		assert.Equal(t, "bob", body["endId"])

		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.CreateFollow(context.Background(), "alice", "bob"))
}

func TestCreateComment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/comments", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["profileId"])
		assert.Equal(t, "bob", body["targetProfileId"])
		assert.Equal(t, "gm", body["text"])

		json.NewEncoder(w).Encode(Comment{ID: "node-7", Text: body["text"]})
	})

	comment, err := client.CreateComment(context.Background(), "alice", "bob", "gm")
	require.NoError(t, err)
	assert.Equal(t, "node-7", comment.ID)
}

func TestErrorStatusSurfaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusBadGateway)
	})

	_, err := client.FindOrCreateProfile(context.Background(), ProfileParams{Username: "alice"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestGetFollowers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profiles/alice/followers", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"profiles": []Profile{{ID: "p-2", Username: "bob"}},
		})
	})

	followers, err := client.GetFollowers(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "bob", followers[0].Username)
}

func TestGetProfileByWallet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/identities", r.URL.Path)
		assert.Equal(t, "wallet-1", r.URL.Query().Get("walletAddress"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"profiles": []Profile{{ID: "p-3", WalletAddress: "wallet-1"}},
		})
	})

	profile, err := client.GetProfileByWallet(context.Background(), "wallet-1")
	require.NoError(t, err)
	assert.Equal(t, "p-3", profile.ID)

	empty := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"profiles": []Profile{}})
	})
	_, err = empty.GetProfileByWallet(context.Background(), "wallet-2")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := client.CreateFollow(ctx, "alice", "bob")
	require.Error(t, err)
}
