package routes_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"messaging-app/config"
	"messaging-app/routes"
	"messaging-app/testutil"

	env "github.com/Netflix/go-env"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Code       int                    `json:"code"`
	Data       json.RawMessage        `json:"data"`
	Pagination map[string]interface{} `json:"pagination"`
	Error      string                 `json:"error"`
}

type client struct {
	t *testing.T
	r http.Handler
}

func (c client) call(method, path, token string, body interface{}) (int, apiResponse) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func newClient(t *testing.T, vars env.EnvSet) client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	testutil.NewDB(t)
	cfg, err := config.FromEnviron(vars)
	require.NoError(t, err)
	r, err := routes.RegisterRoutes(cfg, testutil.Logger(), routes.Options{})
	require.NoError(t, err)
	return client{t: t, r: r}
}

func (c client) signup(username string) (string, string) {
	c.t.Helper()
	code, resp := c.call(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "long-enough-pass",
	})
	require.Equal(c.t, http.StatusCreated, code, resp.Error)
	user := decode[map[string]interface{}](c.t, resp.Data)

	code, resp = c.call(http.MethodPost, "/api/auth/token", "", map[string]string{
		"email":    username + "@example.com",
		"password": "long-enough-pass",
	})
	require.Equal(c.t, http.StatusOK, code, resp.Error)
	pair := decode[map[string]string](c.t, resp.Data)
	return user["user_id"].(string), pair["access"]
}

func TestAuthEndpoints(t *testing.T) {
	c := newClient(t, env.EnvSet{})

	code, _ := c.call(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, code)

	aliceID, aliceToken := c.signup("alice")

	code, resp := c.call(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "alice2@example.com", "password": "long-enough-pass",
	})
	require.Equal(t, http.StatusConflict, code)
	require.NotEmpty(t, resp.Error)

	code, _ = c.call(http.MethodPost, "/api/auth/token", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, code)

	code, _ = c.call(http.MethodGet, "/api/auth/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code, resp = c.call(http.MethodPatch, "/api/auth/profile", aliceToken, map[string]string{"first_name": "Alice"})
	require.Equal(t, http.StatusOK, code)
	profile := decode[map[string]interface{}](t, resp.Data)
	require.Equal(t, "Alice", profile["full_name"])

	code, resp = c.call(http.MethodGet, "/api/users/"+aliceID, aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "alice", decode[map[string]interface{}](t, resp.Data)["username"])

	code, resp = c.call(http.MethodGet, "/api/users/"+uuid.NewString(), aliceToken, nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Not found.", resp.Error)

	code, resp = c.call(http.MethodGet, "/api/users?search=ali", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, resp.Pagination["total"])

	code, _ = c.call(http.MethodGet, "/ws", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestMessagingFlow(t *testing.T) {
	c := newClient(t, env.EnvSet{"SEND_RATE_LIMIT": "3"})
	_, aliceToken := c.signup("alice")
	bobID, bobToken := c.signup("bob")

	code, resp := c.call(http.MethodPost, "/api/conversations", aliceToken, map[string]interface{}{
		"participant_ids": []string{bobID},
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	conv := decode[map[string]interface{}](t, resp.Data)
	convID := conv["conversation_id"].(string)
	require.Equal(t, "bob", conv["display_name"])

	code, resp = c.call(http.MethodPost, "/api/conversations", aliceToken, map[string]interface{}{
		"participant_ids": []string{bobID},
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, convID, decode[map[string]interface{}](t, resp.Data)["conversation_id"])

	code, resp = c.call(http.MethodPost, "/api/conversations/"+convID+"/send_message", aliceToken, map[string]string{"message_body": "hello"})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	first := decode[map[string]interface{}](t, resp.Data)
	firstID := first["message_id"].(string)
	require.Equal(t, true, first["is_own_message"])

	code, _ = c.call(http.MethodPost, "/api/conversations/"+convID+"/send_message", aliceToken, map[string]interface{}{
		"message_body": "reply to myself", "reply_to": firstID,
	})
	require.Equal(t, http.StatusCreated, code)

	code, _ = c.call(http.MethodPost, "/api/messages", aliceToken, map[string]string{
		"conversation_id": convID, "message_body": "third",
	})
	require.Equal(t, http.StatusCreated, code)

	code, resp = c.call(http.MethodPost, "/api/messages", aliceToken, map[string]string{
		"conversation_id": convID, "message_body": "one too many",
	})
	require.Equal(t, http.StatusTooManyRequests, code)
	require.Contains(t, resp.Error, "Rate limit exceeded")

	code, resp = c.call(http.MethodGet, "/api/inbox/unread_count", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 3, decode[map[string]int](t, resp.Data)["unread_count"])

	code, resp = c.call(http.MethodGet, "/api/inbox/summary", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	summary := decode[map[string]int](t, resp.Data)
	require.Equal(t, 3, summary["unread_messages"])
	require.Equal(t, 1, summary["conversations_with_unread"])

	code, resp = c.call(http.MethodGet, "/api/conversations/"+convID+"/messages?limit=2", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, decode[[]map[string]interface{}](t, resp.Data), 2)
	require.EqualValues(t, 3, resp.Pagination["total"])
	require.EqualValues(t, 2, resp.Pagination["total_pages"])

	code, resp = c.call(http.MethodGet, "/api/inbox/unread_count", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 0, decode[map[string]int](t, resp.Data)["unread_count"])

	code, resp = c.call(http.MethodGet, "/api/conversations/"+convID+"/threaded-messages", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	threads := decode[map[string][]map[string]interface{}](t, resp.Data)["threads"]
	require.Len(t, threads, 2)

	code, resp = c.call(http.MethodGet, "/api/notifications", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	notes := decode[map[string]interface{}](t, resp.Data)
	require.EqualValues(t, 3, notes["unread_count"])

	code, resp = c.call(http.MethodPost, "/api/notifications/mark-all-read", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 3, decode[map[string]interface{}](t, resp.Data)["count"])

	code, resp = c.call(http.MethodPost, "/api/messages/"+firstID+"/react", bobToken, map[string]string{"reaction_type": "like"})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	require.Equal(t, "👍", decode[map[string]interface{}](t, resp.Data)["reaction_emoji"])

	code, resp = c.call(http.MethodPost, "/api/messages/"+firstID+"/react", bobToken, map[string]string{"reaction_type": "like"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Reaction removed", decode[map[string]string](t, resp.Data)["message"])

	code, resp = c.call(http.MethodPost, "/api/messages/"+firstID+"/edit", bobToken, map[string]string{"message_body": "mine now"})
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "you can only edit your own messages", resp.Error)

	code, _ = c.call(http.MethodPost, "/api/messages/"+firstID+"/edit", aliceToken, map[string]string{"message_body": "hello!"})
	require.Equal(t, http.StatusOK, code)

	code, resp = c.call(http.MethodGet, "/api/messages/"+firstID+"/history", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	history := decode[[]map[string]interface{}](t, resp.Data)
	require.Len(t, history, 1)
	require.Equal(t, "hello", history[0]["previous_body"])

	code, _ = c.call(http.MethodDelete, "/api/messages/"+firstID+"/soft_delete", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = c.call(http.MethodGet, "/api/messages/"+firstID, aliceToken, nil)
	require.Equal(t, http.StatusNotFound, code)

	code, resp = c.call(http.MethodPost, "/api/conversations/"+convID+"/mute", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, decode[map[string]bool](t, resp.Data)["is_muted"])

	code, resp = c.call(http.MethodGet, "/api/conversations/"+uuid.NewString(), bobToken, nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Not found.", resp.Error)

	code, _ = c.call(http.MethodGet, "/api/messages/by_conversation", bobToken, nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestGroupManagementEndpoints(t *testing.T) {
	c := newClient(t, env.EnvSet{})
	_, aliceToken := c.signup("alice")
	bobID, bobToken := c.signup("bob")
	carolID, carolToken := c.signup("carol")

	code, resp := c.call(http.MethodPost, "/api/conversations", aliceToken, map[string]interface{}{
		"title": "Team", "conversation_type": "group", "participant_ids": []string{bobID},
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	convID := decode[map[string]interface{}](t, resp.Data)["conversation_id"].(string)

	code, _ = c.call(http.MethodGet, "/api/conversations/"+convID, carolToken, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, _ = c.call(http.MethodPost, "/api/conversations/"+convID+"/add_participant", bobToken, map[string]string{"user_id": carolID})
	require.Equal(t, http.StatusForbidden, code)

	code, resp = c.call(http.MethodPost, "/api/conversations/"+convID+"/add_participant", aliceToken, map[string]string{"user_id": carolID})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	require.Equal(t, "member", decode[map[string]interface{}](t, resp.Data)["role"])

	code, _ = c.call(http.MethodPost, "/api/conversations/"+convID+"/add_participant", aliceToken, map[string]string{"user_id": carolID})
	require.Equal(t, http.StatusBadRequest, code)

	code, resp = c.call(http.MethodGet, "/api/conversations/"+convID, carolToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 3, decode[map[string]interface{}](t, resp.Data)["participant_count"])

	code, resp = c.call(http.MethodGet, "/api/notifications/count", carolToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, decode[map[string]int](t, resp.Data)["unread_count"])

	code, resp = c.call(http.MethodPost, "/api/notifications/conversation/"+convID+"/mark-read", carolToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, decode[map[string]interface{}](t, resp.Data)["count"])

	code, _ = c.call(http.MethodPatch, "/api/conversations/"+convID, bobToken, map[string]string{"title": "Bob's"})
	require.Equal(t, http.StatusForbidden, code)

	code, resp = c.call(http.MethodPatch, "/api/conversations/"+convID, aliceToken, map[string]string{"title": "Renamed"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Renamed", decode[map[string]interface{}](t, resp.Data)["display_name"])

	code, _ = c.call(http.MethodPost, "/api/conversations/"+convID+"/leave", carolToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = c.call(http.MethodGet, "/api/conversations", carolToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, decode[[]map[string]interface{}](t, resp.Data))

	code, _ = c.call(http.MethodDelete, "/api/conversations/"+convID, bobToken, nil)
	require.Equal(t, http.StatusForbidden, code)
	code, _ = c.call(http.MethodDelete, "/api/conversations/"+convID, aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
}
