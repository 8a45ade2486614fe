package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/diagnosis/foodshare-donations/internal/domain"
	"github.com/diagnosis/foodshare-donations/internal/http/response"
	"github.com/diagnosis/foodshare-donations/internal/lifecycle"
	"github.com/diagnosis/foodshare-donations/internal/query"
	"github.com/diagnosis/foodshare-donations/pkg/logger"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) CreateDonation(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDonationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	donation, err := h.donationService.CreateDonation(r.Context(), mustActor(r), &req)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "Donation created", "donation_id", donation.ID)
	response.JSON(w, http.StatusCreated, donation)
}

// ListDonations serves the public board: every donation, optionally
// narrowed by ?status= and ?search=.
func (h *Handlers) ListDonations(w http.ResponseWriter, r *http.Request) {
	params, ok := parseQuery(w, r)
	if !ok {
		return
	}
	donations, err := h.donationService.ListDonations(r.Context(), params)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	limit, offset := parsePagination(r)
	response.JSON(w, http.StatusOK, paginate(donations, limit, offset))
}

func (h *Handlers) ListMyDonations(w http.ResponseWriter, r *http.Request) {
	params, ok := parseQuery(w, r)
	if !ok {
		return
	}
	donations, err := h.donationService.ListMine(r.Context(), mustActor(r), params)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	limit, offset := parsePagination(r)
	response.JSON(w, http.StatusOK, paginate(donations, limit, offset))
}

func parseQuery(w http.ResponseWriter, r *http.Request) (query.Params, bool) {
	status, err := query.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return query.Params{}, false
	}
	return query.Params{
		Search: r.URL.Query().Get("search"),
		Status: status,
	}, true
}

func (h *Handlers) GetDonation(w http.ResponseWriter, r *http.Request) {
	view, err := h.donationService.GetDonation(r.Context(), mustActor(r), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusOK, view)
}

// Transition returns the handler for one lifecycle action.
func (h *Handlers) Transition(action lifecycle.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := h.donationService.Transition(r.Context(), mustActor(r), chi.URLParam(r, "id"), action)
		if err != nil {
			response.FromError(r.Context(), w, err)
			return
		}
		response.JSON(w, http.StatusOK, updated)
	}
}

func (h *Handlers) BookDelivery(w http.ResponseWriter, r *http.Request) {
	booking, err := h.donationService.BookDelivery(r.Context(), mustActor(r), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusCreated, booking)
}

func (h *Handlers) ExpireDonations(w http.ResponseWriter, r *http.Request) {
	n, err := h.donationService.ExpireStale(r.Context(), mustActor(r))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]int{"expired": n})
}
