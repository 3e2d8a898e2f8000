package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/invoicing"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/money"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Dispatcher queues buyer-facing messages on the outbox. Delivery is owned by the
// notification pipeline that consumes the published events.
type Dispatcher interface {
	OrderConfirmation(ctx context.Context, order *models.Order, invoice *invoicing.Artifact) error
}

type dispatcher struct {
	db     txRunner
	outbox outbox.Publisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewDispatcher(db txRunner, publisher outbox.Publisher, logg *logger.Logger) (Dispatcher, error) {
	if db == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &dispatcher{db: db, outbox: publisher, logg: logg, now: time.Now}, nil
}

// OrderConfirmation requests the confirmation mail. The invoice is attached when present.
func (d *dispatcher) OrderConfirmation(ctx context.Context, order *models.Order, invoice *invoicing.Artifact) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	email := strings.TrimSpace(order.Contact.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no contact email")
	}

	event := payloads.OrderConfirmationRequestedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BuyerID:     order.BuyerID,
		Email:       email,
		Name:        order.Contact.Name,
		TotalAmount: order.TotalAmount.StringFixed(money.Scale),
	}
	if invoice != nil {
		event.AttachmentName = invoice.FileName
		event.AttachmentType = invoice.ContentType
		event.Attachment = invoice.Content
	}

	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmationRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data:          event,
			OccurredAt:    d.now().UTC(),
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order confirmation")
	}
	d.logg.Info(d.logg.WithField(ctx, "with_invoice", invoice != nil), "order confirmation queued")
	return nil
}
