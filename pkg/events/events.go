package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/foodshare-donations/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("foodshare-donations"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSPublisher) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// NopPublisher drops events; used when NATS_URL is unset.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                     { return nil }

const (
	DonationCreated   = "donation.created"
	DonationReserved  = "donation.reserved"
	DonationCompleted = "donation.completed"
	DonationCanceled  = "donation.canceled"
	DonationExpired   = "donation.expired"
	DeliveryBooked    = "donation.delivery.booked"
)

type DonationCreatedEvent struct {
	DonationID string    `json:"donation_id"`
	DonorID    string    `json:"donor_id"`
	Title      string    `json:"title"`
	FoodType   string    `json:"food_type"`
	Quantity   int       `json:"quantity"`
	ExpiryDate time.Time `json:"expiry_date"`
	CreatedAt  time.Time `json:"created_at"`
}

// DonationStatusEvent is published for every applied lifecycle transition.
type DonationStatusEvent struct {
	DonationID string    `json:"donation_id"`
	DonorID    string    `json:"donor_id"`
	ReservedBy string    `json:"reserved_by,omitempty"`
	Action     string    `json:"action"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type DeliveryBookedEvent struct {
	DonationID  string    `json:"donation_id"`
	DeliveryID  string    `json:"delivery_id"`
	TrackingURL string    `json:"tracking_url"`
	BookedAt    time.Time `json:"booked_at"`
}
