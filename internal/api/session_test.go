package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/webchat-agent/server/internal/agent/graph/conversations"
	"github.com/webchat-agent/server/internal/session"
)

func sessionServer(t *testing.T) *Server {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := session.NewStore(db)
	require.NoError(t, err)
	return NewServer(nil, nil, conversations.NewManager(newMemoryRepo()), store)
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	srv := sessionServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/session", `{"name":"Trip planning"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Trip planning", created.Name)

	rec = doJSON(t, srv, http.MethodGet, "/api/session/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []session.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Data, 1)

	rec = doJSON(t, srv, http.MethodPut, "/api/session/"+created.ID, `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var renamed session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &renamed))
	assert.Equal(t, "Renamed", renamed.Name)

	rec = doJSON(t, srv, http.MethodDelete, "/api/session/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/session/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionDefaultsAndValidation(t *testing.T) {
	t.Parallel()

	srv := sessionServer(t)

	// Empty name gets a default.
	rec := doJSON(t, srv, http.MethodPost, "/api/session", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "New chat", created.Name)

	rec = doJSON(t, srv, http.MethodPost, "/api/session", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/session/"+created.ID, `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
