package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatCreateDerivesTitleAndSeedsMessage(t *testing.T) {
	env := newTestEnv()
	rec := doJSON(t, env.router("user-1"), http.MethodPost, "/api/chat/new",
		`{"first_message":"how do I cook rice?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var chat chatDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))
	require.Equal(t, "how do I cook rice?", chat.Title)
	require.Len(t, chat.Messages, 1)
	require.Equal(t, "user", chat.Messages[0].Role)
	require.Equal(t, "how do I cook rice?", chat.Messages[0].Content)
}

func TestChatCreateTruncatesLongTitle(t *testing.T) {
	env := newTestEnv()
	long := strings.Repeat("字", chatTitleMaxRunes+5)
	rec := doJSON(t, env.router("user-1"), http.MethodPost, "/api/chat/new",
		`{"first_message":"`+long+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var chat chatDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))
	require.Equal(t, strings.Repeat("字", chatTitleMaxRunes)+"...", chat.Title)
}

func TestChatCreateWithoutMessage(t *testing.T) {
	env := newTestEnv()
	rec := doJSON(t, env.router("user-1"), http.MethodPost, "/api/chat/new", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var chat chatDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))
	require.Equal(t, "New Chat", chat.Title)
	require.Empty(t, chat.Messages)
	// Messages serializes as [] rather than null.
	require.Contains(t, rec.Body.String(), `"messages":[]`)
}

func TestChatListScopedToUser(t *testing.T) {
	env := newTestEnv()
	doJSON(t, env.router("user-1"), http.MethodPost, "/api/chat/new", `{"first_message":"mine"}`)
	doJSON(t, env.router("user-2"), http.MethodPost, "/api/chat/new", `{"first_message":"theirs"}`)

	rec := doJSON(t, env.router("user-1"), http.MethodGet, "/api/chat/list", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []chatSummaryDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "mine", items[0].Title)
}

func TestChatGetRejectsForeignChat(t *testing.T) {
	env := newTestEnv()
	rec := doJSON(t, env.router("user-1"), http.MethodPost, "/api/chat/new", `{"first_message":"mine"}`)
	var chat chatDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = doJSON(t, env.router("user-2"), http.MethodGet, "/api/chat/"+chat.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatAppendMessage(t *testing.T) {
	env := newTestEnv()
	h := env.router("user-1")
	rec := doJSON(t, h, http.MethodPost, "/api/chat/new", `{"first_message":"hello"}`)
	var chat chatDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = doJSON(t, h, http.MethodPost, "/api/chat/"+chat.ID+"/message",
		`{"role":"assistant","content":"hi there"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated chatDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Len(t, updated.Messages, 2)
	require.Equal(t, "assistant", updated.Messages[1].Role)
}

func TestChatAppendMessageRejectsBadRole(t *testing.T) {
	env := newTestEnv()
	h := env.router("user-1")
	rec := doJSON(t, h, http.MethodPost, "/api/chat/new", `{}`)
	var chat chatDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = doJSON(t, h, http.MethodPost, "/api/chat/"+chat.ID+"/message",
		`{"role":"wizard","content":"abracadabra"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid message role", decodeBody(t, rec)["message"])
}

func TestChatRename(t *testing.T) {
	env := newTestEnv()
	h := env.router("user-1")
	rec := doJSON(t, h, http.MethodPost, "/api/chat/new", `{}`)
	var chat chatDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = doJSON(t, h, http.MethodPut, "/api/chat/"+chat.ID, `{"title":"  Rice  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated chatDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, "Rice", updated.Title)

	rec = doJSON(t, h, http.MethodPut, "/api/chat/"+chat.ID, `{"title":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatDelete(t *testing.T) {
	env := newTestEnv()
	h := env.router("user-1")
	rec := doJSON(t, h, http.MethodPost, "/api/chat/new", `{}`)
	var chat chatDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = doJSON(t, h, http.MethodDelete, "/api/chat/"+chat.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/chat/"+chat.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatRoutesRequireUserContext(t *testing.T) {
	env := newTestEnv()
	h := env.router("")

	rec := doJSON(t, h, http.MethodGet, "/api/chat/list", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/chat/new", `{}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
