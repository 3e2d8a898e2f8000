package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID gives rows a client-side uuid so inserts work the same on Postgres and sqlite.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model. Used for sqlite schema bootstrap in dev and tests.
func All() []any {
	return []any{
		&Seller{},
		&Product{},
		&Order{},
		&SubOrder{},
		&OrderLineItem{},
		&EscrowRecord{},
		&PaymentAttempt{},
		&Coupon{},
		&CartItem{},
		&LedgerEvent{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}

// AutoMigrate creates the schema through gorm. Postgres deployments use goose instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
