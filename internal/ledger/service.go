package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/money"
)

// Service records immutable money movements against escrow records.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, inputs ...RecordInput) ([]models.LedgerEvent, error)
	ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]models.LedgerEvent, error)
	HasEvent(ctx context.Context, escrowID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data a ledger event requires.
type RecordInput struct {
	OrderID        uuid.UUID             `json:"order_id"`
	SubOrderID     uuid.UUID             `json:"sub_order_id"`
	EscrowRecordID uuid.UUID             `json:"escrow_record_id"`
	SellerID       uuid.UUID             `json:"seller_id"`
	ActorID        *uuid.UUID            `json:"actor_id,omitempty"`
	Type           enums.LedgerEventType `json:"type"`
	Amount         decimal.Decimal       `json:"amount"`
	Metadata       any                   `json:"metadata,omitempty"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Record(ctx context.Context, inputs ...RecordInput) ([]models.LedgerEvent, error) {
	events := make([]*models.LedgerEvent, 0, len(inputs))
	for _, input := range inputs {
		event, err := build(input)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := s.repo.Create(ctx, events...); err != nil {
		return nil, err
	}
	out := make([]models.LedgerEvent, len(events))
	for i, e := range events {
		out[i] = *e
	}
	return out, nil
}

func (s *service) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]models.LedgerEvent, error) {
	if escrowID == uuid.Nil {
		return nil, fmt.Errorf("escrow id is required")
	}
	return s.repo.ListByEscrowID(ctx, escrowID)
}

func (s *service) HasEvent(ctx context.Context, escrowID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid ledger event type %q", eventType)
	}
	events, err := s.ListByEscrow(ctx, escrowID)
	if err != nil {
		return false, err
	}
	for _, event := range events {
		if event.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}

// ForEscrow prefills the identifiers of an escrow record.
func ForEscrow(rec models.EscrowRecord, eventType enums.LedgerEventType, amount decimal.Decimal, actorID *uuid.UUID) RecordInput {
	return RecordInput{
		OrderID:        rec.OrderID,
		SubOrderID:     rec.SubOrderID,
		EscrowRecordID: rec.ID,
		SellerID:       rec.SellerID,
		ActorID:        actorID,
		Type:           eventType,
		Amount:         amount,
	}
}

func build(input RecordInput) (*models.LedgerEvent, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if input.SubOrderID == uuid.Nil {
		return nil, fmt.Errorf("sub order id is required")
	}
	if input.EscrowRecordID == uuid.Nil {
		return nil, fmt.Errorf("escrow record id is required")
	}
	if input.SellerID == uuid.Nil {
		return nil, fmt.Errorf("seller id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("ledger amount must not be negative")
	}

	var metadata json.RawMessage
	if input.Metadata != nil {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal ledger metadata: %w", err)
		}
		metadata = raw
	}
	return &models.LedgerEvent{
		OrderID:        input.OrderID,
		SubOrderID:     input.SubOrderID,
		EscrowRecordID: input.EscrowRecordID,
		SellerID:       input.SellerID,
		ActorID:        input.ActorID,
		Type:           input.Type,
		Amount:         money.Round(input.Amount),
		Metadata:       metadata,
	}, nil
}
