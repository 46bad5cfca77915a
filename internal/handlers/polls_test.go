package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/livepoll/livepoll/internal/entity"
	"github.com/livepoll/livepoll/internal/handlers"
	"github.com/livepoll/livepoll/internal/hub"
	"github.com/livepoll/livepoll/internal/identity"
	"github.com/livepoll/livepoll/internal/middleware"
	"github.com/livepoll/livepoll/internal/repo/memory"
	"github.com/livepoll/livepoll/internal/routes"
	"github.com/livepoll/livepoll/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTokenSecret = "test-secret"

type pollResponse struct {
	Poll  entity.Poll         `json:"poll"`
	Tally []entity.TallyEntry `json:"tally"`
}

func newTestServer(t *testing.T) (*gin.Engine, *services.Polls) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	storage := memory.New()
	pollService := services.NewPolls(log, storage, storage, hub.New())

	authMiddleware := middleware.NewAuthMiddleware(identity.NewResolver(testTokenSecret))

	r := gin.New()
	api := r.Group("/api", authMiddleware.Middleware())
	routes.RegisterRoutes(api, handlers.NewPollsHandler(pollService))

	return r, pollService
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreatePoll_Created(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/polls", gin.H{
		"question":     "Coffee or tea?",
		"options":      []string{"Coffee", "Tea"},
		"creator_name": "carol",
	}, nil)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp pollResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Poll.ID)
	assert.Equal(t, "carol", resp.Poll.CreatorName)
	require.Len(t, resp.Poll.Options, 2)
	require.Len(t, resp.Tally, 2)
	for _, entry := range resp.Tally {
		assert.Zero(t, entry.Count)
	}
}

func TestCreatePoll_InvalidInput(t *testing.T) {
	r, _ := newTestServer(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing question", gin.H{"options": []string{"a", "b"}, "creator_name": "carol"}},
		{"single option", gin.H{"question": "q", "options": []string{"a"}, "creator_name": "carol"}},
		{"empty option", gin.H{"question": "q", "options": []string{"a", ""}, "creator_name": "carol"}},
		{"missing creator", gin.H{"question": "q", "options": []string{"a", "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/polls", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreatePoll_ResolvedIdentityAsCreator(t *testing.T) {
	r, _ := newTestServer(t)

	token, err := identity.NewAccessToken(testTokenSecret, "user-42", time.Minute)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/polls", gin.H{
		"question": "Coffee or tea?",
		"options":  []string{"Coffee", "Tea"},
	}, map[string]string{"Authorization": "Bearer " + token})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp pollResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "user-42", resp.Poll.CreatorName)
}

func TestGetPoll(t *testing.T) {
	r, pollService := newTestServer(t)

	poll, err := pollService.CreatePoll(context.Background(), "Coffee or tea?", []string{"Coffee", "Tea"}, "carol")
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/api/polls/"+poll.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp pollResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, poll.ID, resp.Poll.ID)
	require.Len(t, resp.Tally, 2)

	w = doJSON(t, r, http.MethodGet, "/api/polls/no-such-poll", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPolls(t *testing.T) {
	r, pollService := newTestServer(t)

	_, err := pollService.CreatePoll(context.Background(), "Coffee or tea?", []string{"Coffee", "Tea"}, "carol")
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/api/polls", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Polls []entity.Poll `json:"polls"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Polls, 1)
}

func TestCastVote(t *testing.T) {
	r, pollService := newTestServer(t)

	poll, err := pollService.CreatePoll(context.Background(), "Coffee or tea?", []string{"Coffee", "Tea"}, "carol")
	require.NoError(t, err)
	votePath := "/api/polls/" + poll.ID + "/vote"

	w := doJSON(t, r, http.MethodPost, votePath, gin.H{
		"option_id":  poll.Options[0].ID,
		"voter_name": "alice",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tally []entity.TallyEntry `json:"tally"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tally, 2)
	assert.Equal(t, int64(1), resp.Tally[0].Count)

	// Same voter again: conflict, whichever option.
	w = doJSON(t, r, http.MethodPost, votePath, gin.H{
		"option_id":  poll.Options[1].ID,
		"voter_name": "alice",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Anonymous without a name.
	w = doJSON(t, r, http.MethodPost, votePath, gin.H{
		"option_id": poll.Options[0].ID,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Option that does not belong to the poll.
	w = doJSON(t, r, http.MethodPost, votePath, gin.H{
		"option_id":  "no-such-option",
		"voter_name": "bob",
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Poll that does not exist.
	w = doJSON(t, r, http.MethodPost, "/api/polls/no-such-poll/vote", gin.H{
		"option_id":  poll.Options[0].ID,
		"voter_name": "bob",
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCastVote_ResolvedIdentityAsVoter(t *testing.T) {
	r, pollService := newTestServer(t)

	poll, err := pollService.CreatePoll(context.Background(), "Coffee or tea?", []string{"Coffee", "Tea"}, "carol")
	require.NoError(t, err)

	token, err := identity.NewAccessToken(testTokenSecret, "user-42", time.Minute)
	require.NoError(t, err)
	headers := map[string]string{"Authorization": "Bearer " + token}

	w := doJSON(t, r, http.MethodPost, "/api/polls/"+poll.ID+"/vote", gin.H{
		"option_id": poll.Options[0].ID,
	}, headers)
	require.Equal(t, http.StatusOK, w.Code)

	// The resolved identity, not the supplied name, is the voter: a second
	// vote under a different display name still conflicts.
	w = doJSON(t, r, http.MethodPost, "/api/polls/"+poll.ID+"/vote", gin.H{
		"option_id":  poll.Options[1].ID,
		"voter_name": "someone-else",
	}, headers)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetResults(t *testing.T) {
	r, pollService := newTestServer(t)

	poll, err := pollService.CreatePoll(context.Background(), "Coffee or tea?", []string{"Coffee", "Tea"}, "carol")
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/api/polls/"+poll.ID+"/results", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tally []entity.TallyEntry `json:"tally"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tally, 2)

	w = doJSON(t, r, http.MethodGet, "/api/polls/no-such-poll/results", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
