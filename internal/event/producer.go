package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	pkgkafka "github.com/XxvipoxX/ChaosAWS/pkg/kafka"
	"github.com/XxvipoxX/ChaosAWS/pkg/logger"
)

// Kafka topic constants for membership domain events.
const (
	TopicAccountRegistered      = "chaos.account.registered"
	TopicOrderCompleted         = "chaos.order.completed"
	TopicOrderFailed            = "chaos.order.failed"
	TopicOrderRefunded          = "chaos.order.refunded"
	TopicMembershipActivated    = "chaos.membership.activated"
	TopicPasswordResetRequested = "chaos.password_reset.requested"
)

// Aggregate type constants.
const (
	AggregateTypeAccount = "account"
	AggregateTypeOrder   = "order"
)

// SourceMembershipService identifies events emitted by this service.
const SourceMembershipService = "membership-service"

// AccountRegisteredData is the payload for an account.registered event.
type AccountRegisteredData struct {
	AccountID  string      `json:"account_id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	TierChoice domain.Tier `json:"tier_choice"`
}

// OrderData is the payload for order events.
type OrderData struct {
	OrderID           string             `json:"order_id"`
	AccountID         string             `json:"account_id"`
	PlanType          domain.Tier        `json:"plan_type"`
	Amount            int64              `json:"amount"`
	Currency          string             `json:"currency"`
	Status            domain.OrderStatus `json:"status"`
	TransactionID     string             `json:"transaction_id"`
	FailureReason     string             `json:"failure_reason,omitempty"`
	SubscriptionStart *time.Time         `json:"subscription_start,omitempty"`
	SubscriptionEnd   *time.Time         `json:"subscription_end,omitempty"`
}

// MembershipActivatedData is the payload for a membership.activated event.
type MembershipActivatedData struct {
	AccountID        string      `json:"account_id"`
	Tier             domain.Tier `json:"tier"`
	OrderID          string      `json:"order_id"`
	ActivationStart  *time.Time  `json:"activation_start"`
	ActivationExpiry *time.Time  `json:"activation_expiry"`
}

// PasswordResetRequestedData is the payload for a password_reset.requested
// event. The token itself never leaves the service.
type PasswordResetRequestedData struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Producer publishes membership domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, a *domain.Account, tierChoice domain.Tier) error {
	data := AccountRegisteredData{
		AccountID:  a.ID,
		Username:   a.Username,
		Email:      a.Email,
		TierChoice: tierChoice,
	}
	return p.publish(ctx, TopicAccountRegistered, a.ID, AggregateTypeAccount, data)
}

// PublishOrderCompleted publishes an order.completed event.
func (p *Producer) PublishOrderCompleted(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderCompleted, o.ID, AggregateTypeOrder, orderData(o))
}

// PublishOrderFailed publishes an order.failed event.
func (p *Producer) PublishOrderFailed(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderFailed, o.ID, AggregateTypeOrder, orderData(o))
}

// PublishOrderRefunded publishes an order.refunded event.
func (p *Producer) PublishOrderRefunded(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderRefunded, o.ID, AggregateTypeOrder, orderData(o))
}

// PublishMembershipActivated publishes a membership.activated event.
func (p *Producer) PublishMembershipActivated(ctx context.Context, a *domain.Account, orderID string) error {
	data := MembershipActivatedData{
		AccountID:        a.ID,
		Tier:             a.Tier,
		OrderID:          orderID,
		ActivationStart:  a.ActivationStart,
		ActivationExpiry: a.ActivationExpiry,
	}
	return p.publish(ctx, TopicMembershipActivated, a.ID, AggregateTypeAccount, data)
}

// PublishPasswordResetRequested publishes a password_reset.requested event.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, a *domain.Account, expiresAt time.Time) error {
	data := PasswordResetRequestedData{
		AccountID: a.ID,
		Email:     a.Email,
		ExpiresAt: expiresAt,
	}
	return p.publish(ctx, TopicPasswordResetRequested, a.ID, AggregateTypeAccount, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceMembershipService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func orderData(o *domain.Order) OrderData {
	return OrderData{
		OrderID:           o.ID,
		AccountID:         o.AccountID,
		PlanType:          o.PlanType,
		Amount:            o.Amount,
		Currency:          o.Currency,
		Status:            o.Status,
		TransactionID:     o.TransactionID,
		FailureReason:     o.FailureReason,
		SubscriptionStart: o.SubscriptionStart,
		SubscriptionEnd:   o.SubscriptionEnd,
	}
}
