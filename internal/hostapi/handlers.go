package hostapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rafaeljc/muninn/internal/logger"
)

// handleLogEvent processes POST /api/v1/events.
//
// The event is run through the full lifecycle synchronously (identity
// check, matching, validation, queueing); dispatch itself continues in the
// background, so a 202 only means the event was recorded.
func (a *API) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req LogEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	ev := req.ToEvent()
	a.engine.LogEvent(r.Context(), ev)

	log.Info("event logged",
		slog.String("event_type", ev.Type.String()),
		slog.String("event_name", ev.Name),
	)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"eventId": ev.ID})
}

// handleSetIdentity processes PUT /api/v1/identity. The new credentials
// take effect immediately: the engine detects the transition and swaps its
// per-user state before the response is written.
func (a *API) handleSetIdentity(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req SetIdentityRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	a.credentials.Set(req.UserID, req.IDTrackingIdentifier, req.AccessToken)
	a.engine.CheckUserChanges(r.Context())

	a.renderIdentity(w, r)
}

// handleClearIdentity processes DELETE /api/v1/identity, returning the
// engine to the anonymous user.
func (a *API) handleClearIdentity(w http.ResponseWriter, r *http.Request) {
	a.credentials.Clear()
	a.engine.CheckUserChanges(r.Context())

	a.renderIdentity(w, r)
}

func (a *API) renderIdentity(w http.ResponseWriter, r *http.Request) {
	repo := a.engine.Repository()
	render.Status(r, http.StatusOK)
	render.JSON(w, r, IdentityResponse{
		Anonymous: a.credentials.UserID() == "" && a.credentials.IDTrackingIdentifier() == "",
		CacheKey:  repo.CurrentCacheKey(),
	})
}

// handleListCampaigns processes GET /api/v1/campaigns.
func (a *API) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	repo := a.engine.Repository()

	list := repo.List()
	data := make([]CampaignResponse, 0, len(list))
	for _, c := range list {
		data = append(data, mapCampaignToResponse(c))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, CampaignListResponse{
		Data:           data,
		LastSyncMillis: repo.LastSyncMillis(),
	})
}

// handleOptOut processes POST /api/v1/campaigns/{id}/opt-out. Opting out
// an unknown id is a 404; everything else succeeds and persists.
func (a *API) handleOptOut(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	c := a.engine.Repository().OptOutCampaign(r.Context(), id)
	if c == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_NOT_FOUND",
			Message: "No campaign with id " + id,
		})
		return
	}

	log.Info("campaign opted out", slog.String("campaign_id", id))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, mapCampaignToResponse(*c))
}

// handleCloseMessage processes POST /api/v1/close. An empty body is
// allowed and means "close without clearing the queue".
func (a *API) handleCloseMessage(w http.ResponseWriter, r *http.Request) {
	var req CloseMessageRequest
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_INVALID_JSON",
				Message: "Invalid JSON payload: " + err.Error(),
			})
			return
		}
	}

	a.engine.CloseMessage(req.ClearQueue)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
