package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	"github.com/barthig/Biblioteka-sub002/pkg/logger"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox/idempotency"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox/payloads"
)

const patronNotificationConsumer = "patron-notifications"

const noticeDateFormat = "2 Jan 2006"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches circulation events and turns them into patron notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a patron notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	builder, ok := noticeBuilders[enums.OutboxEventType(eventType)]
	if !ok {
		c.logg.Info(logCtx, "skipping event without patron notice")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, patronNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notification, err := builder(envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, patronNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	if notification == nil {
		return processResult{ack: true}
	}

	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "failed to store notification", err)
		_ = c.idempotency.Delete(ctx, patronNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"user_id": notification.UserID.String(),
		"type":    notification.Type.String(),
	}), "patron notified")
	return processResult{ack: true}
}

type noticeBuilder func(data json.RawMessage) (*models.Notification, error)

var noticeBuilders = map[enums.OutboxEventType]noticeBuilder{
	enums.EventLoanCreated:        buildLoanCreatedNotice,
	enums.EventLoanReturned:       buildLoanReturnedNotice,
	enums.EventLoanDueSoon:        buildLoanDueSoonNotice,
	enums.EventLoanOverdue:        buildLoanOverdueNotice,
	enums.EventReservationCreated: buildReservationQueuedNotice,
	enums.EventReservationReady:   buildReservationReadyNotice,
	enums.EventReservationExpired: buildReservationExpiredNotice,
	enums.EventFineAssessed:       buildFineAssessedNotice,
}

func buildLoanCreatedNotice(data json.RawMessage) (*models.Notification, error) {
	var payload payloads.LoanCreatedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	return &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationLoanCreated,
		Title:   "Book borrowed",
		Message: fmt.Sprintf("Please return it by %s.", payload.DueAt.Format(noticeDateFormat)),
	}, nil
}

func buildLoanReturnedNotice(data json.RawMessage) (*models.Notification, error) {
	var payload payloads.LoanReturnedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	message := "Thanks, the copy is back at the library."
	if payload.WasOverdue {
		message = "The book came back after its due date. Check your account for fines."
	}
	return &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationLoanReturned,
		Title:   "Book returned",
		Message: message,
	}, nil
}

func buildLoanDueSoonNotice(data json.RawMessage) (*models.Notification, error) {
	var payload payloads.LoanDueSoonEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	return &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationLoanDueSoon,
		Title:   "Loan due soon",
		Message: fmt.Sprintf("Your loan is due in %s, on %s.", pluralDays(payload.DaysLeft), payload.DueAt.Format(noticeDateFormat)),
	}, nil
}

func buildLoanOverdueNotice(data json.RawMessage) (*models.Notification, error) {
	var payload payloads.LoanOverdueEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	return &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationLoanOverdue,
		Title:   "Loan overdue",
		Message: fmt.Sprintf("Your loan is %s overdue. Please return the book.", pluralDays(payload.DaysOverdue)),
	}, nil
}

func buildReservationQueuedNotice(data json.RawMessage) (*models.Notification, error) {
	var payload payloads.ReservationCreatedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	return &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationReservationQueued,
		Title:   "Reservation placed",
		Message: fmt.Sprintf("You are number %d in the queue.", payload.QueuePosition),
	}, nil
}

func buildReservationReadyNotice(data json.RawMessage) (*models.Notification, error) {
	var payload payloads.ReservationReadyEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	return &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationReservationReady,
		Title:   "Reservation ready for pickup",
		Message: fmt.Sprintf("A copy is waiting for you. Pick it up by %s.", payload.PickupBy.Format(noticeDateFormat)),
	}, nil
}

func buildReservationExpiredNotice(data json.RawMessage) (*models.Notification, error) {
	var payload payloads.ReservationExpiredEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	return &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationReservationExpired,
		Title:   "Reservation expired",
		Message: "Your hold was not picked up in time and has been released.",
	}, nil
}

func buildFineAssessedNotice(data json.RawMessage) (*models.Notification, error) {
	var payload payloads.FineAssessedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	return &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationFineAssessed,
		Title:   "Overdue fine assessed",
		Message: fmt.Sprintf("A fine of %s %s was added to your account for %s overdue.", payload.Amount, payload.Currency, pluralDays(payload.DaysOverdue)),
	}, nil
}

func pluralDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
