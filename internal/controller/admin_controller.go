package controller

import (
	"context"
	"net/http"

	"github.com/unclebandit/squdy-backend/internal/handler"
	"github.com/unclebandit/squdy-backend/internal/model"
	"github.com/unclebandit/squdy-backend/internal/service"
)

type AdminController struct {
	CampaignService *service.CampaignService
	AdminService    *service.AdminService
}

func (c *AdminController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CreateCampaignInput
	if err := handler.DecodeJSON(w, r, &body); err != nil {
		handler.WriteError(w, err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, campaign)
}

func (c *AdminController) ListParticipants(w http.ResponseWriter, r *http.Request) {
	id, err := handler.CampaignID(r)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	participants, err := c.CampaignService.ListParticipants(r.Context(), id)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":  participants,
		"total": len(participants),
	})
}

func (c *AdminController) Activate(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.AdminService.Activate)
}

func (c *AdminController) Pause(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.AdminService.Pause)
}

func (c *AdminController) Resume(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.AdminService.Resume)
}

func (c *AdminController) Close(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.AdminService.Close)
}

func (c *AdminController) SelectWinners(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.AdminService.SelectWinners)
}

func (c *AdminController) BurnTokens(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.AdminService.BurnTokens)
}

func (c *AdminController) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, int) (*model.Campaign, error)) {
	id, err := handler.CampaignID(r)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	campaign, err := op(r.Context(), id)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, campaign)
}
