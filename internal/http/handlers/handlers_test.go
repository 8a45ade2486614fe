package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnosis/foodshare-donations/internal/delivery"
	"github.com/diagnosis/foodshare-donations/internal/domain"
	"github.com/diagnosis/foodshare-donations/internal/http/handlers"
	"github.com/diagnosis/foodshare-donations/internal/repository"
	"github.com/diagnosis/foodshare-donations/internal/service"
	"github.com/diagnosis/foodshare-donations/pkg/auth"
	"github.com/diagnosis/foodshare-donations/pkg/config"
	"github.com/diagnosis/foodshare-donations/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret"
	testAudience = "foodshare-test"
)

type testServer struct {
	router http.Handler
	repo   *repository.MemoryDonationRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := repository.NewMemoryDonationRepository()
	svc := service.NewDonationService(repo, delivery.NewClient("", "", time.Second), events.NopPublisher{})
	h := handlers.New(svc, config.AuthConfig{JWTSecret: testSecret, Audience: testAudience})
	return &testServer{router: h.Routes(), repo: repo}
}

func token(t *testing.T, sub, name string, role domain.Role) string {
	t.Helper()
	tok, err := auth.NewAccessToken(sub, name, string(role), testSecret, testAudience, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createBody() map[string]interface{} {
	now := time.Now().UTC()
	return map[string]interface{}{
		"title":             "Fresh Bread",
		"description":       "Sourdough loaves",
		"food_type":         "bakery",
		"quantity":          12,
		"expiry_date":       now.Add(48 * time.Hour),
		"pickup_address":    "1 Main St",
		"pickup_time_start": now.Add(time.Hour),
		"pickup_time_end":   now.Add(3 * time.Hour),
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/donations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/donations", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wrongAud, err := auth.NewAccessToken("u1", "U", "donor", testSecret, "someone-else", time.Hour)
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/donations", wrongAud, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/donations", token(t, "u1", "U", domain.RoleSystem), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "system role is never accepted from a token")

	rec = s.do(t, http.MethodGet, "/donations", token(t, "u1", "U", domain.RoleDonor), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDonationLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	donor := token(t, "donor-a", "Corner Bakery", domain.RoleDonor)
	orphB := token(t, "orph-b", "Hope House", domain.RoleOrphanage)
	orphC := token(t, "orph-c", "Sunrise Home", domain.RoleOrphanage)

	rec := s.do(t, http.MethodPost, "/donations", orphB, createBody())
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[map[string]string](t, rec)["code"])

	rec = s.do(t, http.MethodPost, "/donations", donor, createBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[domain.Donation](t, rec)
	assert.Equal(t, domain.DonationAvailable, created.Status)
	assert.Equal(t, "Corner Bakery", created.DonorName)

	rec = s.do(t, http.MethodGet, "/donations/"+created.ID, orphB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[map[string]interface{}](t, rec)
	assert.Equal(t, []interface{}{"reserve"}, view["allowed_actions"])

	rec = s.do(t, http.MethodPost, "/donations/"+created.ID+"/reserve", orphB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "orph-b", decode[domain.Donation](t, rec).ReservedBy)

	rec = s.do(t, http.MethodPost, "/donations/"+created.ID+"/reserve", orphC, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode[map[string]string](t, rec)["code"])

	rec = s.do(t, http.MethodPost, "/donations/"+created.ID+"/complete", orphC, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/donations/mine", orphB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Donation](t, rec), 1)

	rec = s.do(t, http.MethodPost, "/donations/"+created.ID+"/confirm", donor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DonationCompleted, decode[domain.Donation](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/donations/"+created.ID+"/cancel", orphB, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateValidation(t *testing.T) {
	s := newTestServer(t)
	donor := token(t, "donor-a", "Corner Bakery", domain.RoleDonor)

	body := createBody()
	body["quantity"] = 0
	rec := s.do(t, http.MethodPost, "/donations", donor, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["details"], "quantity")

	req := httptest.NewRequest(http.MethodPost, "/donations", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+donor)
	raw := httptest.NewRecorder()
	s.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestReserveExpired(t *testing.T) {
	s := newTestServer(t)
	s.repo.Seed(domain.Donation{
		ID: "stale", Title: "Milk", DonorID: "donor-a", DonorName: "Dairy",
		Status: domain.DonationAvailable, ExpiryDate: time.Now().Add(-24 * time.Hour),
	})

	rec := s.do(t, http.MethodPost, "/donations/stale/reserve", token(t, "orph-b", "Hope", domain.RoleOrphanage), nil)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "EXPIRED", decode[map[string]string](t, rec)["code"])

	rec = s.do(t, http.MethodGet, "/donations?status=expired", token(t, "orph-b", "Hope", domain.RoleOrphanage), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]domain.Donation](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, domain.DonationExpired, list[0].Status)
}

func TestListFiltersAndPagination(t *testing.T) {
	s := newTestServer(t)
	far := time.Now().Add(48 * time.Hour)
	s.repo.Seed(
		domain.Donation{ID: "1", Title: "Bread", DonorName: "Bakery", Status: domain.DonationAvailable, ExpiryDate: far},
		domain.Donation{ID: "2", Title: "Soup", DonorName: "Kitchen", Status: domain.DonationAvailable, ExpiryDate: far},
		domain.Donation{ID: "3", Title: "Rolls", Description: "day-old bread", DonorName: "Bakery", Status: domain.DonationReserved, ReservedBy: "o", ExpiryDate: far},
	)
	tok := token(t, "orph-b", "Hope", domain.RoleOrphanage)

	rec := s.do(t, http.MethodGet, "/donations?search=BREAD", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Donation](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/donations?status=reserved", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reserved := decode[[]domain.Donation](t, rec)
	require.Len(t, reserved, 1)
	assert.Equal(t, "3", reserved[0].ID)

	rec = s.do(t, http.MethodGet, "/donations?limit=1&offset=1", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[[]domain.Donation](t, rec)
	require.Len(t, page, 1)
	assert.Equal(t, "2", page[0].ID)

	rec = s.do(t, http.MethodGet, "/donations?offset=10", tok, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/donations?status=pending", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDonationNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/donations/missing", token(t, "d", "D", domain.RoleDonor), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminExpire(t *testing.T) {
	s := newTestServer(t)
	s.repo.Seed(
		domain.Donation{ID: "old", Status: domain.DonationAvailable, ExpiryDate: time.Now().Add(-time.Hour)},
		domain.Donation{ID: "new", Status: domain.DonationAvailable, ExpiryDate: time.Now().Add(time.Hour)},
	)

	rec := s.do(t, http.MethodPost, "/admin/donations/expire", token(t, "d", "D", domain.RoleDonor), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/donations/expire", token(t, "admin", "Admin", domain.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"expired":1}`, rec.Body.String())
}

func TestBookDeliveryNotConfigured(t *testing.T) {
	s := newTestServer(t)
	s.repo.Seed(domain.Donation{
		ID: "r", DonorID: "donor-a", Status: domain.DonationReserved, ReservedBy: "orph-b",
		PickupAddress: "1 Main St", ExpiryDate: time.Now().Add(time.Hour),
	})

	rec := s.do(t, http.MethodPost, "/donations/r/delivery", token(t, "orph-b", "Hope", domain.RoleOrphanage), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodPost, "/donations/r/delivery", token(t, "orph-x", "Other", domain.RoleOrphanage), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
