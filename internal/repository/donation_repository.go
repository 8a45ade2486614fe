package repository

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/foodshare-donations/internal/domain"
	"github.com/diagnosis/foodshare-donations/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DonationRepository is the donation store. List returns the full snapshot,
// newest first. CompareAndSetStatus applies t only while the stored status
// and reserver still equal t.From and t.FromReservedBy; it returns nil when
// the guard did not hold or the donation does not exist.
type DonationRepository interface {
	Create(ctx context.Context, donorID, donorName string, req *domain.CreateDonationReq) (*domain.Donation, error)
	GetByID(ctx context.Context, id string) (*domain.Donation, error)
	List(ctx context.Context) ([]domain.Donation, error)
	CompareAndSetStatus(ctx context.Context, t lifecycle.Transition) (*domain.Donation, error)
}

type donationRepository struct {
	pool *pgxpool.Pool
}

func NewDonationRepository(pool *pgxpool.Pool) DonationRepository {
	return &donationRepository{pool: pool}
}

const donationCols = `id, title, description, food_type, quantity,
expiry_date, pickup_address, pickup_time_start, pickup_time_end,
donor_id, donor_name, status, reserved_by, reserved_by_name,
image_url, created_at, updated_at`

func scanDonation(row pgx.Row) (*domain.Donation, error) {
	var (
		d                          domain.Donation
		reservedBy, reservedByName *string
		imageURL                   *string
	)
	err := row.Scan(
		&d.ID, &d.Title, &d.Description, &d.FoodType, &d.Quantity,
		&d.ExpiryDate, &d.PickupAddress, &d.PickupTimeStart, &d.PickupTimeEnd,
		&d.DonorID, &d.DonorName, &d.Status, &reservedBy, &reservedByName,
		&imageURL, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reservedBy != nil {
		d.ReservedBy = *reservedBy
	}
	if reservedByName != nil {
		d.ReservedByName = *reservedByName
	}
	if imageURL != nil {
		d.ImageURL = *imageURL
	}
	return &d, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *donationRepository) Create(ctx context.Context, donorID, donorName string, req *domain.CreateDonationReq) (*domain.Donation, error) {
	const q = `INSERT INTO donations (
		id, title, description, food_type, quantity,
		expiry_date, pickup_address, pickup_time_start, pickup_time_end,
		donor_id, donor_name, status, image_url
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'available',$12)
	RETURNING ` + donationCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanDonation(r.pool.QueryRow(ctx, q,
		uuid.NewString(), req.Title, req.Description, req.FoodType, req.Quantity,
		req.ExpiryDate, req.PickupAddress, req.PickupTimeStart, req.PickupTimeEnd,
		donorID, donorName, nullable(req.ImageURL),
	))
}

func (r *donationRepository) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	const q = `SELECT ` + donationCols + ` FROM donations WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	d, err := scanDonation(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (r *donationRepository) List(ctx context.Context) ([]domain.Donation, error) {
	const q = `SELECT ` + donationCols + ` FROM donations ORDER BY created_at DESC, id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donations []domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}
	return donations, rows.Err()
}

func (r *donationRepository) CompareAndSetStatus(ctx context.Context, t lifecycle.Transition) (*domain.Donation, error) {
	var set string
	args := []any{t.DonationID, t.From, t.FromReservedBy, t.To}
	switch t.Reserver {
	case lifecycle.ReserverSet:
		set = `, reserved_by=$5, reserved_by_name=$6`
		args = append(args, t.ReservedBy, t.ReservedByName)
	case lifecycle.ReserverClear:
		set = `, reserved_by=NULL, reserved_by_name=NULL`
	}

	q := `UPDATE donations SET status=$4` + set + `, updated_at=now()
		WHERE id=$1 AND status=$2 AND COALESCE(reserved_by, '')=$3
		RETURNING ` + donationCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	d, err := scanDonation(r.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

var _ DonationRepository = (*donationRepository)(nil)
