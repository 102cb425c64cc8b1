// internal/controller/campaign_controller.go
package controller

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/unclebandit/squdy-backend/internal/auth"
	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
	"github.com/unclebandit/squdy-backend/internal/handler"
	"github.com/unclebandit/squdy-backend/internal/service"
)

// CampaignController serves the public and wallet-authenticated campaign routes
type CampaignController struct {
	CampaignService *service.CampaignService
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, status)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := handler.CampaignID(r)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	details, err := c.CampaignService.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, details)
}

func (c *CampaignController) GetDrawReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := handler.CampaignID(r)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	receipt, err := c.CampaignService.GetDrawReceipt(r.Context(), id)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, receipt)
}

func (c *CampaignController) Participate(w http.ResponseWriter, r *http.Request) {
	id, wallet, err := campaignAndWallet(r)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	var body struct {
		Amount decimal.Decimal `json:"amount"`
		TxHash string          `json:"txHash"`
	}
	if err := handler.DecodeJSON(w, r, &body); err != nil {
		handler.WriteError(w, err)
		return
	}
	if !body.Amount.IsPositive() {
		handler.WriteError(w, appErrors.NewValidation("amount must be positive"))
		return
	}

	participant, err := c.CampaignService.Participate(r.Context(), id, wallet, body.Amount, body.TxHash)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, participant)
}

func (c *CampaignController) VerifySocial(w http.ResponseWriter, r *http.Request) {
	id, wallet, err := campaignAndWallet(r)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	var body struct {
		Task  string `json:"task"`
		Proof string `json:"proof"`
	}
	if err := handler.DecodeJSON(w, r, &body); err != nil {
		handler.WriteError(w, err)
		return
	}

	participant, err := c.CampaignService.VerifySocial(r.Context(), id, wallet, body.Task, body.Proof)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, participant)
}

func (c *CampaignController) MyStatus(w http.ResponseWriter, r *http.Request) {
	id, wallet, err := campaignAndWallet(r)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	status, err := c.CampaignService.MyStatus(r.Context(), id, wallet)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, status)
}

func (c *CampaignController) Leave(w http.ResponseWriter, r *http.Request) {
	id, wallet, err := campaignAndWallet(r)
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	if err := c.CampaignService.Leave(r.Context(), id, wallet); err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"wallet":      wallet,
		"left":        true,
	})
}

func campaignAndWallet(r *http.Request) (int, string, error) {
	id, err := handler.CampaignID(r)
	if err != nil {
		return 0, "", err
	}
	wallet, ok := auth.WalletFrom(r.Context())
	if !ok {
		return 0, "", appErrors.NewUnauthorized("Wallet authentication required")
	}
	return id, wallet, nil
}
