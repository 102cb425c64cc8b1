package controller_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/squdy-backend/internal/auth"
	"github.com/unclebandit/squdy-backend/internal/config"
	"github.com/unclebandit/squdy-backend/internal/controller"
	"github.com/unclebandit/squdy-backend/internal/metrics"
	"github.com/unclebandit/squdy-backend/internal/model"
	"github.com/unclebandit/squdy-backend/internal/repository"
	"github.com/unclebandit/squdy-backend/internal/service"
)

// --- Mock Repositories ---

type MockCampaignRepoForPagination struct {
	repository.CampaignRepositoryInterface

	campaigns []*model.Campaign
}

func (m *MockCampaignRepoForPagination) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	var filtered []*model.Campaign
	for _, c := range m.campaigns {
		if status != "" && string(c.Status) != status {
			continue
		}
		filtered = append(filtered, c)
	}
	total := len(filtered)

	// Simulate pagination
	start := offset
	end := offset + limit
	if start > total {
		return []*model.Campaign{}, total, nil
	}
	if end > total {
		end = total
	}
	return filtered[start:end], total, nil
}

func TestListCampaignsPagination(t *testing.T) {
	// --- Seed 25 active campaigns and a few pending ones the filter must skip ---
	totalCampaigns := 25
	campaigns := []*model.Campaign{}
	for i := 1; i <= totalCampaigns+3; i++ {
		status := model.StatusActive
		if i > totalCampaigns {
			status = model.StatusPending
		}
		campaigns = append(campaigns, &model.Campaign{
			ID:     i,
			Name:   "Campaign " + strconv.Itoa(i),
			Status: status,
		})
	}

	repo := &MockCampaignRepoForPagination{campaigns: campaigns}
	svc := &service.CampaignService{CampaignRepo: repo}
	ctrl := &controller.CampaignController{CampaignService: svc}

	pageSize := 10
	seen := map[int]bool{}

	totalPages := (totalCampaigns + pageSize - 1) / pageSize

	for page := 1; page <= totalPages; page++ {
		req := httptest.NewRequest(
			"GET",
			"/api/campaigns?page="+strconv.Itoa(page)+
				"&page_size="+strconv.Itoa(pageSize)+
				"&status=active",
			nil,
		)
		w := httptest.NewRecorder()

		ctrl.ListCampaigns(w, req)
		resp := w.Result()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var res struct {
			Data       []model.Campaign `json:"data"`
			Pagination struct {
				Page       int `json:"page"`
				PageSize   int `json:"page_size"`
				TotalCount int `json:"total_count"`
				TotalPages int `json:"total_pages"`
			} `json:"pagination"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		// --- Check pagination info ---
		if res.Pagination.Page != page {
			t.Errorf("expected page %d, got %d", page, res.Pagination.Page)
		}
		if res.Pagination.PageSize != pageSize {
			t.Errorf("expected page size %d, got %d", pageSize, res.Pagination.PageSize)
		}
		if res.Pagination.TotalCount != totalCampaigns {
			t.Errorf("expected total count %d, got %d", totalCampaigns, res.Pagination.TotalCount)
		}
		if res.Pagination.TotalPages != totalPages {
			t.Errorf("expected %d pages, got %d", totalPages, res.Pagination.TotalPages)
		}

		// --- Check data ---
		for _, c := range res.Data {
			if seen[c.ID] {
				t.Errorf("duplicate campaign ID %d across pages", c.ID)
			}
			seen[c.ID] = true

			if c.Status != model.StatusActive {
				t.Errorf("expected status active, got %s", c.Status)
			}
		}
	}

	if len(seen) != totalCampaigns {
		t.Errorf("expected %d unique campaigns, got %d", totalCampaigns, len(seen))
	}
}

func TestListCampaignsRejectsUnknownStatus(t *testing.T) {
	ctrl := &controller.CampaignController{CampaignService: &service.CampaignService{CampaignRepo: &MockCampaignRepoForPagination{}}}

	w := httptest.NewRecorder()
	ctrl.ListCampaigns(w, httptest.NewRequest("GET", "/api/campaigns?status=draft", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"statusCode":400`)
}

// --- Router tests against the in-memory store ---

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	store   *repository.MemoryStore
	admin   wallet
	clock   *time.Time
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := repository.NewMemoryStore()
	admin := newWallet(t)
	clock := time.Now().UTC()
	api := &testAPI{t: t, store: store, admin: admin, clock: &clock}
	now := func() time.Time { return *api.clock }

	svc := &service.CampaignService{CampaignRepo: store, ParticipantRepo: store, Now: now}
	adminSvc := &service.AdminService{CampaignRepo: store, ParticipantRepo: store, Now: now}
	verifier := auth.NewVerifier(config.AuthConfig{AdminWallets: []string{admin.address}, SignatureMaxAge: 5 * time.Minute})

	api.handler = controller.NewRouter(controller.RouterConfig{
		Campaigns:   &controller.CampaignController{CampaignService: svc},
		Admin:       &controller.AdminController{CampaignService: svc, AdminService: adminSvc},
		Auth:        verifier,
		Metrics:     metrics.New(),
		MetricsPath: "/metrics",
	})
	return api
}

// do sends a request, signed by w when it is non-nil
func (a *testAPI) do(method, path string, w *wallet, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if w != nil {
		msg := fmt.Sprintf("Sign in to Squdy\nTimestamp: %d", time.Now().Unix())
		sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), w.key)
		require.NoError(a.t, err)
		sig[64] += 27
		req.Header.Set(auth.HeaderAddress, w.address)
		req.Header.Set(auth.HeaderMessage, msg)
		req.Header.Set(auth.HeaderSignature, hexutil.Encode(sig))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) createCampaign(contractID int) model.Campaign {
	a.t.Helper()
	start := a.clock.Add(-time.Minute)
	rec := a.do(http.MethodPost, "/api/admin/campaigns", &a.admin, map[string]any{
		"contractId":   contractID,
		"name":         "Campaign " + strconv.Itoa(contractID),
		"softCap":      "1000",
		"hardCap":      "5000",
		"ticketAmount": "100",
		"startDate":    start.Format(time.RFC3339),
		"endDate":      start.Add(24 * time.Hour).Format(time.RFC3339),
		"prizes":       []map[string]any{{"name": "Grand prize", "value": "1000"}},
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Campaign](a.t, rec)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	api := newTestAPI(t)
	user := newWallet(t)

	rec := api.do(http.MethodPost, "/api/admin/campaigns", nil, map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/admin/campaigns", &user, map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPost, "/api/admin/campaigns", &api.admin, map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCampaignFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	user := newWallet(t)

	c := api.createCampaign(1)
	path := "/api/campaigns/" + strconv.Itoa(c.ID)
	adminPath := "/api/admin/campaigns/" + strconv.Itoa(c.ID)

	// staking before activation
	rec := api.do(http.MethodPost, path+"/participate", &user, map[string]any{"amount": "200", "txHash": "0x1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, adminPath+"/activate", &api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusActive, decode[model.Campaign](t, rec).Status)

	rec = api.do(http.MethodPost, path+"/participate", nil, map[string]any{"amount": "200"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, path+"/participate", &user, map[string]any{"amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, path+"/participate", &user, map[string]any{"amount": "250", "txHash": "0x1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[model.Participant](t, rec)
	assert.Equal(t, int64(2), p.TicketCount)
	assert.Equal(t, strings.ToLower(user.address), p.WalletAddress)

	for _, task := range model.AllSocialTasks {
		rec = api.do(http.MethodPost, path+"/verify-social", &user, map[string]any{"task": task, "proof": "https://proof"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = api.do(http.MethodGet, path+"/my-status", &user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]any](t, rec)
	assert.Equal(t, true, status["eligible"])

	rec = api.do(http.MethodPost, path+"/leave", &user, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details := decode[map[string]any](t, rec)
	assert.Equal(t, "250", details["currentAmount"])
	stats := details["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["eligibleParticipants"])

	rec = api.do(http.MethodPost, adminPath+"/close", &api.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Campaign end date has not been reached")

	rec = api.do(http.MethodPost, adminPath+"/burn-tokens", &api.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	*api.clock = api.clock.Add(48 * time.Hour)
	rec = api.do(http.MethodPost, adminPath+"/close", &api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, adminPath+"/select-winners", &api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	selected := decode[model.Campaign](t, rec)
	require.Len(t, selected.Winners, 1)
	assert.Equal(t, strings.ToLower(user.address), selected.Winners[0].WalletAddress)

	rec = api.do(http.MethodGet, adminPath+"/participants", &api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isWinner":true`)

	rec = api.do(http.MethodPost, adminPath+"/burn-tokens", &api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusBurned, decode[model.Campaign](t, rec).Status)

	// no archive configured
	rec = api.do(http.MethodGet, path+"/draw", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotFoundAndBadIDs(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/campaigns/77", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"statusCode":404`)

	rec = api.do(http.MethodGet, "/api/campaigns/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "squdy_api_requests_total")
}

func TestLeaveBeforeStaking(t *testing.T) {
	api := newTestAPI(t)
	user := newWallet(t)
	c := api.createCampaign(2)
	path := "/api/campaigns/" + strconv.Itoa(c.ID)

	rec := api.do(http.MethodPost, path+"/verify-social", &user, map[string]any{"task": "telegram_join", "proof": "t.me/x"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, path+"/leave", &user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, path+"/my-status", &user, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
