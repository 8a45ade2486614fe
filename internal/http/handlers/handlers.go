package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/diagnosis/foodshare-donations/internal/domain"
	"github.com/diagnosis/foodshare-donations/internal/http/response"
	"github.com/diagnosis/foodshare-donations/internal/lifecycle"
	"github.com/diagnosis/foodshare-donations/internal/service"
	"github.com/diagnosis/foodshare-donations/pkg/auth"
	"github.com/diagnosis/foodshare-donations/pkg/config"
	"github.com/diagnosis/foodshare-donations/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ctxKey string

const ctxActor ctxKey = "actor"

type Handlers struct {
	donationService service.DonationService
	auth            config.AuthConfig
}

func New(donationService service.DonationService, authCfg config.AuthConfig) *Handlers {
	return &Handlers{
		donationService: donationService,
		auth:            authCfg,
	}
}

// Routes builds the /v1 API. write wraps every state-changing route, for
// rate limiting and idempotent replay.
func (h *Handlers) Routes(write ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(h.RequireActor())

	r.Route("/donations", func(r chi.Router) {
		r.Get("/", h.ListDonations)
		r.Get("/mine", h.ListMyDonations)
		r.Get("/{id}", h.GetDonation)

		r.Group(func(r chi.Router) {
			r.Use(write...)
			r.Post("/", h.CreateDonation)
			r.Post("/{id}/reserve", h.Transition(lifecycle.ActionReserve))
			r.Post("/{id}/complete", h.Transition(lifecycle.ActionComplete))
			r.Post("/{id}/confirm", h.Transition(lifecycle.ActionComplete))
			r.Post("/{id}/cancel", h.Transition(lifecycle.ActionCancel))
			r.Post("/{id}/delivery", h.BookDelivery)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.RequireActor(domain.RoleAdmin))
		r.Use(write...)
		r.Post("/donations/expire", h.ExpireDonations)
	})
	return r
}

// RequireActor authenticates the bearer token and puts the caller in the
// request context. With roles given, other roles get 403.
func (h *Handlers) RequireActor(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := actorFrom(r)
			if !ok {
				authHeader := r.Header.Get("Authorization")
				if !strings.HasPrefix(authHeader, "Bearer ") {
					response.Unauthenticated(w, "Missing or invalid authorization header")
					return
				}

				token := strings.TrimPrefix(authHeader, "Bearer ")
				claims, err := auth.Parse(token, h.auth.JWTSecret, h.auth.Audience)
				if err != nil {
					logger.DebugContext(r.Context(), "Rejected token", "error", err)
					response.Unauthenticated(w, "Invalid token")
					return
				}
				role, valid := domain.ParseRole(claims.Role)
				if !valid {
					response.Unauthenticated(w, "Token carries an unknown role")
					return
				}
				actor = domain.Actor{ID: claims.Subject, Name: claims.Name, Role: role}
			}

			if len(roles) > 0 && !hasRole(actor.Role, roles) {
				response.Forbidden(w, "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), ctxActor, actor)
			ctx = context.WithValue(ctx, logger.ActorIDKey, actor.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasRole(role domain.Role, roles []domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func actorFrom(r *http.Request) (domain.Actor, bool) {
	actor, ok := r.Context().Value(ctxActor).(domain.Actor)
	return actor, ok
}

// mustActor is for handlers mounted behind RequireActor.
func mustActor(r *http.Request) domain.Actor {
	actor, _ := actorFrom(r)
	return actor
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
