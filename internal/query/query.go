// Package query derives the filtered, search-matched donation view.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/foodshare-donations/internal/domain"
)

// StatusFilter is a donation status or StatusAll.
type StatusFilter string

const StatusAll StatusFilter = "all"

// ParseStatusFilter maps "" to StatusAll.
func ParseStatusFilter(s string) (StatusFilter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == string(StatusAll) {
		return StatusAll, nil
	}
	if st, ok := domain.ParseDonationStatus(s); ok {
		return StatusFilter(st), nil
	}
	return "", fmt.Errorf("%w: status must be one of all, available, reserved, completed, expired", domain.ErrInvalidInput)
}

type Params struct {
	Search string
	Status StatusFilter

	// DonorID and ReservedBy narrow to one party's donations when set.
	DonorID    string
	ReservedBy string
}

// Filter returns the donations matching p, in input order, each carrying its
// effective status as of now. The input slice is not modified.
func Filter(donations []domain.Donation, p Params, now time.Time) []domain.Donation {
	term := strings.ToLower(strings.TrimSpace(p.Search))
	status := p.Status
	if status == "" {
		status = StatusAll
	}

	out := make([]domain.Donation, 0, len(donations))
	for _, d := range donations {
		d = d.WithEffectiveStatus(now)
		if status != StatusAll && StatusFilter(d.Status) != status {
			continue
		}
		if p.DonorID != "" && d.DonorID != p.DonorID {
			continue
		}
		if p.ReservedBy != "" && d.ReservedBy != p.ReservedBy {
			continue
		}
		if term != "" && !matches(&d, term) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func matches(d *domain.Donation, term string) bool {
	return strings.Contains(strings.ToLower(d.Title), term) ||
		strings.Contains(strings.ToLower(d.Description), term) ||
		strings.Contains(strings.ToLower(d.DonorName), term)
}
