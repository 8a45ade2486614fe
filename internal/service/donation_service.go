package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/foodshare-donations/internal/delivery"
	"github.com/diagnosis/foodshare-donations/internal/domain"
	"github.com/diagnosis/foodshare-donations/internal/lifecycle"
	"github.com/diagnosis/foodshare-donations/internal/query"
	"github.com/diagnosis/foodshare-donations/internal/repository"
	"github.com/diagnosis/foodshare-donations/pkg/events"
	"github.com/diagnosis/foodshare-donations/pkg/logger"
	"github.com/diagnosis/foodshare-donations/pkg/metrics"
)

type DonationService interface {
	CreateDonation(ctx context.Context, actor domain.Actor, req *domain.CreateDonationReq) (*domain.Donation, error)
	GetDonation(ctx context.Context, actor domain.Actor, id string) (*DonationView, error)
	ListDonations(ctx context.Context, params query.Params) ([]domain.Donation, error)
	ListMine(ctx context.Context, actor domain.Actor, params query.Params) ([]domain.Donation, error)
	Transition(ctx context.Context, actor domain.Actor, id string, action lifecycle.Action) (*domain.Donation, error)
	ExpireStale(ctx context.Context, actor domain.Actor) (int, error)
	BookDelivery(ctx context.Context, actor domain.Actor, id string) (*delivery.Booking, error)
}

// DonationView is a donation as shown to one actor.
type DonationView struct {
	domain.Donation
	AllowedActions []lifecycle.Action `json:"allowed_actions"`
}

type donationService struct {
	donationRepo repository.DonationRepository
	gateway      delivery.Gateway
	publisher    events.Publisher
	now          func() time.Time
}

type Option func(*donationService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *donationService) { s.now = now }
}

func NewDonationService(
	donationRepo repository.DonationRepository,
	gateway delivery.Gateway,
	publisher events.Publisher,
	opts ...Option,
) DonationService {
	s := &donationService{
		donationRepo: donationRepo,
		gateway:      gateway,
		publisher:    publisher,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *donationService) CreateDonation(ctx context.Context, actor domain.Actor, req *domain.CreateDonationReq) (*domain.Donation, error) {
	if actor.Role != domain.RoleDonor {
		return nil, fmt.Errorf("%w: only donors can create donations", domain.ErrUnauthorized)
	}
	req.Normalize()
	if err := req.Validate(s.now()); err != nil {
		return nil, err
	}

	donation, err := s.donationRepo.Create(ctx, actor.ID, actor.Name, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create donation: %w", err)
	}
	metrics.DonationsCreatedTotal.Inc()

	event := events.DonationCreatedEvent{
		DonationID: donation.ID,
		DonorID:    donation.DonorID,
		Title:      donation.Title,
		FoodType:   donation.FoodType,
		Quantity:   donation.Quantity,
		ExpiryDate: donation.ExpiryDate,
		CreatedAt:  donation.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, events.DonationCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish donation created event", "error", err, "donation_id", donation.ID)
	}

	return donation, nil
}

func (s *donationService) load(ctx context.Context, id string) (*domain.Donation, error) {
	d, err := s.donationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}
	if d == nil {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (s *donationService) GetDonation(ctx context.Context, actor domain.Actor, id string) (*DonationView, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &DonationView{
		Donation:       d.WithEffectiveStatus(now),
		AllowedActions: lifecycle.AllowedActions(d, actor, now),
	}, nil
}

func (s *donationService) ListDonations(ctx context.Context, params query.Params) ([]domain.Donation, error) {
	snapshot, err := s.donationRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	metrics.QueriesTotal.Inc()
	return query.Filter(snapshot, params, s.now()), nil
}

// ListMine narrows to the donor's own donations or the orphanage's
// reservations. Admins see everything.
func (s *donationService) ListMine(ctx context.Context, actor domain.Actor, params query.Params) ([]domain.Donation, error) {
	switch actor.Role {
	case domain.RoleDonor:
		params.DonorID = actor.ID
	case domain.RoleOrphanage:
		params.ReservedBy = actor.ID
	case domain.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: role %q has no donations", domain.ErrUnauthorized, actor.Role)
	}
	return s.ListDonations(ctx, params)
}

func (s *donationService) Transition(ctx context.Context, actor domain.Actor, id string, action lifecycle.Action) (*domain.Donation, error) {
	updated, err := s.transition(ctx, actor, id, action)
	metrics.TransitionsTotal.WithLabelValues(string(action), outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	d := updated.WithEffectiveStatus(s.now())
	return &d, nil
}

func (s *donationService) transition(ctx context.Context, actor domain.Actor, id string, action lifecycle.Action) (*domain.Donation, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	plan, err := lifecycle.Plan(d, action, actor, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.donationRepo.CompareAndSetStatus(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to update donation: %w", err)
	}
	if updated == nil {
		return nil, s.lostRace(ctx, actor, id, action)
	}

	event := events.DonationStatusEvent{
		DonationID: updated.ID,
		DonorID:    updated.DonorID,
		ReservedBy: updated.ReservedBy,
		Action:     string(action),
		From:       string(plan.From),
		To:         string(plan.To),
		ActorID:    actor.ID,
		OccurredAt: updated.UpdatedAt,
	}
	if err := s.publisher.Publish(ctx, statusSubject(plan.To), event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish donation status event", "error", err, "donation_id", updated.ID, "action", action)
	}
	logger.InfoContext(ctx, "Donation status changed", "donation_id", updated.ID, "action", action, "from", plan.From, "to", plan.To)

	return updated, nil
}

// lostRace explains why a conditional update did not apply: the donation
// changed between read and write. The fresh state decides the error.
func (s *donationService) lostRace(ctx context.Context, actor domain.Actor, id string, action lifecycle.Action) error {
	fresh, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := lifecycle.Plan(fresh, action, actor, s.now()); err != nil {
		return err
	}
	return fmt.Errorf("%w: donation changed concurrently", domain.ErrInvalidTransition)
}

func (s *donationService) ExpireStale(ctx context.Context, actor domain.Actor) (int, error) {
	if actor.Role != domain.RoleAdmin {
		return 0, fmt.Errorf("%w: only admins can expire donations", domain.ErrUnauthorized)
	}
	snapshot, err := s.donationRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list donations: %w", err)
	}

	expired := 0
	for i := range snapshot {
		d := &snapshot[i]
		if d.Status == d.EffectiveStatus(s.now()) {
			continue
		}
		_, err := s.Transition(ctx, domain.SystemActor, d.ID, lifecycle.ActionExpire)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
			// completed or expired by someone else meanwhile
		default:
			return expired, err
		}
	}
	logger.InfoContext(ctx, "Expired stale donations", "count", expired)
	return expired, nil
}

func (s *donationService) BookDelivery(ctx context.Context, actor domain.Actor, id string) (*delivery.Booking, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.IsOwner(actor.ID) && !d.IsReserver(actor.ID) {
		return nil, fmt.Errorf("%w: only the donor or the reserving orphanage can book delivery", domain.ErrUnauthorized)
	}
	now := s.now()
	if st := d.EffectiveStatus(now); st != domain.DonationReserved && st != domain.DonationCompleted {
		return nil, fmt.Errorf("%w: delivery needs a reserved or completed donation, this one is %s", domain.ErrInvalidTransition, st)
	}

	booking, err := s.gateway.Book(ctx, d.ID, d.PickupAddress)
	if err != nil {
		metrics.DeliveryBookingsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to book delivery: %w", err)
	}
	metrics.DeliveryBookingsTotal.WithLabelValues("booked").Inc()

	event := events.DeliveryBookedEvent{
		DonationID:  d.ID,
		DeliveryID:  booking.DeliveryID,
		TrackingURL: booking.TrackingURL,
		BookedAt:    now,
	}
	if err := s.publisher.Publish(ctx, events.DeliveryBooked, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish delivery booked event", "error", err, "donation_id", d.ID)
	}
	return booking, nil
}

func statusSubject(to domain.DonationStatus) string {
	switch to {
	case domain.DonationReserved:
		return events.DonationReserved
	case domain.DonationCompleted:
		return events.DonationCompleted
	case domain.DonationExpired:
		return events.DonationExpired
	default:
		return events.DonationCanceled
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
