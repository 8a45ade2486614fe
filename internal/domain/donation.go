package domain

import (
	"fmt"
	"strings"
	"time"
)

type DonationStatus string

const (
	DonationAvailable DonationStatus = "available"
	DonationReserved  DonationStatus = "reserved"
	DonationCompleted DonationStatus = "completed"
	DonationExpired   DonationStatus = "expired"
)

func ParseDonationStatus(s string) (DonationStatus, bool) {
	switch DonationStatus(s) {
	case DonationAvailable, DonationReserved, DonationCompleted, DonationExpired:
		return DonationStatus(s), true
	default:
		return "", false
	}
}

// Terminal reports whether no lifecycle action can leave this status.
func (s DonationStatus) Terminal() bool {
	return s == DonationCompleted || s == DonationExpired
}

type Donation struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FoodType    string `json:"food_type"`
	Quantity    int    `json:"quantity"`

	ExpiryDate      time.Time `json:"expiry_date"`
	PickupAddress   string    `json:"pickup_address"`
	PickupTimeStart time.Time `json:"pickup_time_start"`
	PickupTimeEnd   time.Time `json:"pickup_time_end"`

	DonorID   string `json:"donor_id"`
	DonorName string `json:"donor_name"`

	Status         DonationStatus `json:"status"`
	ReservedBy     string         `json:"reserved_by,omitempty"`
	ReservedByName string         `json:"reserved_by_name,omitempty"`

	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveStatus applies lazy expiry: anything past its expiry date that
// has not been completed reads as expired, whatever is stored.
func (d *Donation) EffectiveStatus(now time.Time) DonationStatus {
	if d.Status != DonationCompleted && now.After(d.ExpiryDate) {
		return DonationExpired
	}
	return d.Status
}

// IsExpired reports whether the expiry date has passed, ignoring status.
func (d *Donation) IsExpired(now time.Time) bool {
	return now.After(d.ExpiryDate)
}

func (d *Donation) IsOwner(actorID string) bool {
	return actorID != "" && d.DonorID == actorID
}

func (d *Donation) IsReserver(actorID string) bool {
	return actorID != "" && d.ReservedBy == actorID
}

// WithEffectiveStatus returns a copy whose Status is the effective status.
func (d Donation) WithEffectiveStatus(now time.Time) Donation {
	d.Status = d.EffectiveStatus(now)
	return d
}

type CreateDonationReq struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	FoodType        string    `json:"food_type"`
	Quantity        int       `json:"quantity"`
	ExpiryDate      time.Time `json:"expiry_date"`
	PickupAddress   string    `json:"pickup_address"`
	PickupTimeStart time.Time `json:"pickup_time_start"`
	PickupTimeEnd   time.Time `json:"pickup_time_end"`
	ImageURL        string    `json:"image_url,omitempty"`
}

const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 2000
	MinQuantity          = 1
)

func (r *CreateDonationReq) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.FoodType = strings.TrimSpace(r.FoodType)
	r.PickupAddress = strings.TrimSpace(r.PickupAddress)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
}

// Validate checks the request against the donation invariants. now is the
// creation instant; a donation that is already expired cannot be listed.
func (r *CreateDonationReq) Validate(now time.Time) error {
	switch {
	case r.Title == "":
		return invalid("title is required")
	case len(r.Title) > MaxTitleLength:
		return invalid("title must be at most %d characters", MaxTitleLength)
	case len(r.Description) > MaxDescriptionLength:
		return invalid("description must be at most %d characters", MaxDescriptionLength)
	case r.FoodType == "":
		return invalid("food_type is required")
	case r.Quantity < MinQuantity:
		return invalid("quantity must be at least %d", MinQuantity)
	case r.PickupAddress == "":
		return invalid("pickup_address is required")
	case r.ExpiryDate.IsZero():
		return invalid("expiry_date is required")
	case !r.ExpiryDate.After(now):
		return invalid("expiry_date must be in the future")
	case r.PickupTimeStart.IsZero() || r.PickupTimeEnd.IsZero():
		return invalid("pickup window is required")
	case !r.PickupTimeStart.Before(r.PickupTimeEnd):
		return invalid("pickup_time_start must be before pickup_time_end")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}
