package repository

import (
	"context"
	"sync"
	"time"

	"github.com/diagnosis/foodshare-donations/internal/domain"
	"github.com/diagnosis/foodshare-donations/internal/lifecycle"
	"github.com/google/uuid"
)

// MemoryDonationRepository keeps donations in process. It backs the
// "memory" store driver and tests.
type MemoryDonationRepository struct {
	mu        sync.RWMutex
	donations []domain.Donation // insertion order
	index     map[string]int
	now       func() time.Time
}

func NewMemoryDonationRepository() *MemoryDonationRepository {
	return &MemoryDonationRepository{
		index: make(map[string]int),
		now:   time.Now,
	}
}

// Seed inserts donations as-is, for fixtures.
func (r *MemoryDonationRepository) Seed(donations ...domain.Donation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range donations {
		r.index[d.ID] = len(r.donations)
		r.donations = append(r.donations, d)
	}
}

func (r *MemoryDonationRepository) Create(_ context.Context, donorID, donorName string, req *domain.CreateDonationReq) (*domain.Donation, error) {
	now := r.now()
	d := domain.Donation{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Description:     req.Description,
		FoodType:        req.FoodType,
		Quantity:        req.Quantity,
		ExpiryDate:      req.ExpiryDate,
		PickupAddress:   req.PickupAddress,
		PickupTimeStart: req.PickupTimeStart,
		PickupTimeEnd:   req.PickupTimeEnd,
		DonorID:         donorID,
		DonorName:       donorName,
		Status:          domain.DonationAvailable,
		ImageURL:        req.ImageURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	r.mu.Lock()
	r.index[d.ID] = len(r.donations)
	r.donations = append(r.donations, d)
	r.mu.Unlock()

	return &d, nil
}

func (r *MemoryDonationRepository) GetByID(_ context.Context, id string) (*domain.Donation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return nil, nil
	}
	d := r.donations[i]
	return &d, nil
}

func (r *MemoryDonationRepository) List(_ context.Context) ([]domain.Donation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Donation, 0, len(r.donations))
	for i := len(r.donations) - 1; i >= 0; i-- {
		out = append(out, r.donations[i])
	}
	return out, nil
}

func (r *MemoryDonationRepository) CompareAndSetStatus(_ context.Context, t lifecycle.Transition) (*domain.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[t.DonationID]
	if !ok {
		return nil, nil
	}
	cur := r.donations[i]
	if cur.Status != t.From || cur.ReservedBy != t.FromReservedBy {
		return nil, nil
	}
	next := lifecycle.Apply(cur, t, r.now())
	r.donations[i] = next
	return &next, nil
}

var _ DonationRepository = (*MemoryDonationRepository)(nil)
