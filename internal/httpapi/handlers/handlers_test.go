package handlers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentick/dashboard/internal/httpapi/handlers"
	"github.com/agentick/dashboard/internal/httpapi/server"
	"github.com/agentick/dashboard/pkg/cache/clientcache"
	"github.com/agentick/dashboard/pkg/cache/inmemory"
	"github.com/agentick/dashboard/pkg/config"
	"github.com/agentick/dashboard/pkg/preferences"
	"github.com/agentick/dashboard/pkg/registry"
	"github.com/agentick/dashboard/pkg/repository"
	"github.com/agentick/dashboard/pkg/store/feed"
	"github.com/agentick/dashboard/pkg/store/memory"
	"github.com/agentick/dashboard/pkg/types"
)

type testAPI struct {
	router http.Handler
	reg    *registry.ClientRegistry
	sync   *preferences.Synchronizer
}

func newTestAPI(t *testing.T, cfg *config.AppConfig) *testAPI {
	t.Helper()

	if cfg == nil {
		cfg = &config.AppConfig{}
		cfg.App.Name = "dashboard"
		cfg.App.Environment = "test"
	}

	backing, err := inmemory.NewCache(&inmemory.Config{})
	require.NoError(t, err)
	repo := repository.New(memory.New(feed.NewLocalFeed()), clientcache.New(backing))
	reg := registry.New(repo)
	sync := preferences.New(reg)
	t.Cleanup(sync.Close)

	api := server.NewAPIServer(cfg, handlers.NewHandlers(cfg, reg, sync))
	return &testAPI{router: api.Router(), reg: reg, sync: sync}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestStatus(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, http.MethodGet, "/api/v1/status", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAddAndListClients(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/clients", map[string]string{"name": "Acme"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created types.Client
	decodeBody(t, rec, &created)
	assert.Equal(t, "Acme", created.Name)
	assert.NotEmpty(t, created.ID)

	rec = api.do(t, http.MethodGet, "/api/v1/clients", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list handlers.ClientListResponse
	decodeBody(t, rec, &list)
	require.Len(t, list.Clients, 1)
	assert.Equal(t, created.ID, list.SelectedID, "first client becomes the selection")
}

func TestAddClientValidation(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/clients", map[string]string{"name": "ab"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// duplicate name
	rec = api.do(t, http.MethodPost, "/api/v1/clients", map[string]string{"name": "Acme"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = api.do(t, http.MethodPost, "/api/v1/clients", map[string]string{"name": "ACME"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetClient(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/clients", map[string]string{"name": "Acme"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created types.Client
	decodeBody(t, rec, &created)

	rec = api.do(t, http.MethodGet, "/api/v1/clients/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/clients/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveClient(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/clients", map[string]string{"name": "Acme"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created types.Client
	decodeBody(t, rec, &created)

	rec = api.do(t, http.MethodDelete, "/api/v1/clients/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list handlers.ClientListResponse
	decodeBody(t, rec, &list)
	assert.Empty(t, list.Clients)
	assert.Empty(t, list.SelectedID)

	rec = api.do(t, http.MethodDelete, "/api/v1/clients/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateClientPreferences(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/clients", map[string]string{"name": "Acme"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created types.Client
	decodeBody(t, rec, &created)

	prefs := types.UIPreferences{
		Layout:     types.LayoutCompact,
		ColorTheme: types.ThemeBlue,
		Padding:    types.SizeLarge,
		FontSize:   types.SizeSmall,
	}
	rec = api.do(t, http.MethodPut, "/api/v1/clients/"+created.ID+"/preferences", prefs, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/v1/clients/"+created.ID+"/preferences",
		map[string]string{"colorTheme": "neon"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/v1/clients/missing/preferences", prefs, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectClientEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/clients", map[string]string{"name": "Acme"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = api.do(t, http.MethodPost, "/api/v1/clients", map[string]string{"name": "Globex"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var second types.Client
	decodeBody(t, rec, &second)

	rec = api.do(t, http.MethodPost, "/api/v1/clients/"+second.ID+"/select", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list handlers.ClientListResponse
	decodeBody(t, rec, &list)
	assert.Equal(t, second.ID, list.SelectedID)
}

func TestPreferencesEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)

	// no client yet: defaults
	rec := api.do(t, http.MethodGet, "/api/v1/preferences", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.PreferencesResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, types.DefaultPreferences(), resp.Preferences)
	assert.Empty(t, resp.ClientID)

	// add a client, patch one field through the synchronizer
	rec = api.do(t, http.MethodPost, "/api/v1/clients", map[string]string{"name": "Acme"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/v1/preferences",
		map[string]string{"colorTheme": "light"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, types.ThemeLight, resp.Preferences.ColorTheme)
	assert.Equal(t, types.LayoutDefault, resp.Preferences.Layout, "untouched fields keep defaults")

	rec = api.do(t, http.MethodPut, "/api/v1/preferences",
		map[string]string{"colorTheme": "neon"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThemeEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/api/v1/preferences/theme", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var vars preferences.ThemeVariables
	decodeBody(t, rec, &vars)
	assert.Equal(t, "#0f1535", vars.Colors.Background)
	assert.Equal(t, "24px", vars.Padding.MD)
}

func TestBatchEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/clients", map[string]string{"name": "Acme"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created types.Client
	decodeBody(t, rec, &created)

	body := []map[string]interface{}{
		{"id": created.ID, "data": map[string]interface{}{"name": "Acme Corp"}},
	}
	rec = api.do(t, http.MethodPost, "/api/v1/clients/batch", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list handlers.ClientListResponse
	decodeBody(t, rec, &list)
	require.Len(t, list.Clients, 1)
	assert.Equal(t, "Acme Corp", list.Clients[0].Name)

	// empty batch is a validation error
	rec = api.do(t, http.MethodPost, "/api/v1/clients/batch", []map[string]interface{}{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.App.Name = "dashboard"
	cfg.App.Environment = "test"
	cfg.APIServer.Auth.Enabled = true
	cfg.APIServer.Auth.APIKeys = []string{"secret"}

	api := newTestAPI(t, cfg)

	rec := api.do(t, http.MethodGet, "/api/v1/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/status", nil, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/status", nil, map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
