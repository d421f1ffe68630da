package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/agentick/dashboard/pkg/config"
	"github.com/agentick/dashboard/pkg/preferences"
	"github.com/agentick/dashboard/pkg/registry"
	"github.com/agentick/dashboard/pkg/store"
	"github.com/agentick/dashboard/pkg/types"
)

type Handlers struct {
	config *config.AppConfig
	reg    *registry.ClientRegistry
	sync   *preferences.Synchronizer
}

func NewHandlers(cfg *config.AppConfig, reg *registry.ClientRegistry, sync *preferences.Synchronizer) *Handlers {
	return &Handlers{
		config: cfg,
		reg:    reg,
		sync:   sync,
	}
}

// ClientListResponse is the registry snapshot the dashboard renders from.
type ClientListResponse struct {
	Clients    []*types.Client `json:"clients"`
	SelectedID string          `json:"selectedId,omitempty"`
	Loading    bool            `json:"loading"`
	Refreshing bool            `json:"refreshing"`
	Error      string          `json:"error,omitempty"`
}

func snapshotResponse(snap registry.Snapshot) ClientListResponse {
	resp := ClientListResponse{
		Clients:    snap.Clients,
		Loading:    snap.Loading,
		Refreshing: snap.Refreshing,
		Error:      snap.Err,
	}
	if snap.Selected != nil {
		resp.SelectedID = snap.Selected.ID
	}
	return resp
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logrus.WithError(err).Error("request failed against the store")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (h *Handlers) ListClients(c *gin.Context) {
	c.JSON(http.StatusOK, snapshotResponse(h.reg.State()))
}

func (h *Handlers) GetClient(c *gin.Context) {
	id := c.Param("id")
	snap := h.reg.State()
	for _, client := range snap.Clients {
		if client.ID == id {
			c.JSON(http.StatusOK, client)
			return
		}
	}
	writeError(c, types.Err(types.ErrNotFound, nil, "client with id %s not found", id))
}

type addClientRequest struct {
	Name string `json:"name"`
}

func (h *Handlers) AddClient(c *gin.Context) {
	var req addClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	client, err := h.reg.AddClient(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *Handlers) RemoveClient(c *gin.Context) {
	if err := h.reg.RemoveClient(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotResponse(h.reg.State()))
}

func (h *Handlers) UpdateClientPreferences(c *gin.Context) {
	var prefs types.UIPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.reg.UpdateClientPreferences(c.Request.Context(), c.Param("id"), prefs); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handlers) UpdateClientMetrics(c *gin.Context) {
	var metrics types.Metrics
	if err := c.ShouldBindJSON(&metrics); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.reg.UpdateClientMetrics(c.Request.Context(), c.Param("id"), metrics); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handlers) RefreshClients(c *gin.Context) {
	if err := h.reg.RefreshAll(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotResponse(h.reg.State()))
}

type batchUpdateEntry struct {
	ID   string `json:"id"`
	Data struct {
		Name          *string              `json:"name,omitempty"`
		Metrics       types.Metrics        `json:"metrics,omitempty"`
		UIPreferences *types.UIPreferences `json:"uiPreferences,omitempty"`
	} `json:"data"`
}

func (h *Handlers) BatchUpdateClients(c *gin.Context) {
	var entries []batchUpdateEntry
	if err := c.ShouldBindJSON(&entries); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updates := make([]store.DocUpdate, 0, len(entries))
	for _, e := range entries {
		updates = append(updates, store.DocUpdate{
			ID: e.ID,
			Data: store.DocPatch{
				Name:          e.Data.Name,
				Metrics:       e.Data.Metrics,
				UIPreferences: e.Data.UIPreferences,
			},
		})
	}

	if err := h.reg.BatchUpdate(c.Request.Context(), updates); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotResponse(h.reg.State()))
}

func (h *Handlers) SelectClient(c *gin.Context) {
	if err := h.reg.SelectClient(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotResponse(h.reg.State()))
}

// PreferencesResponse pairs the active display preferences with the client
// they mirror. ClientID is empty when the defaults are being served.
type PreferencesResponse struct {
	ClientID    string              `json:"clientId,omitempty"`
	Preferences types.UIPreferences `json:"preferences"`
	EditMode    bool                `json:"editMode"`
}

func (h *Handlers) GetPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, PreferencesResponse{
		ClientID:    h.sync.SelectedClientID(),
		Preferences: h.sync.Preferences(),
		EditMode:    h.sync.EditMode(),
	})
}

func (h *Handlers) UpdatePreferences(c *gin.Context) {
	var patch types.PreferencePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.sync.UpdatePreferences(c.Request.Context(), patch); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PreferencesResponse{
		ClientID:    h.sync.SelectedClientID(),
		Preferences: h.sync.Preferences(),
		EditMode:    h.sync.EditMode(),
	})
}

func (h *Handlers) GetTheme(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.ThemeVariables())
}

func (h *Handlers) ToggleEditMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"editMode": h.sync.ToggleEditMode()})
}

func (h *Handlers) ClearError(c *gin.Context) {
	h.reg.ClearError()
	c.JSON(http.StatusOK, snapshotResponse(h.reg.State()))
}
