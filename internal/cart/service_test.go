package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-engine/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

type stubRepo struct {
	deleteFn func(ctx context.Context, buyerID uuid.UUID) (int64, error)
}

func (s stubRepo) ListByBuyer(context.Context, uuid.UUID) ([]models.CartItem, error) {
	return nil, nil
}

func (s stubRepo) DeleteByBuyer(ctx context.Context, buyerID uuid.UUID) (int64, error) {
	return s.deleteFn(ctx, buyerID)
}

func TestClearRemovesOnlyBuyerLines(t *testing.T) {
	client := dbtest.Open(t)
	buyer, other := uuid.New(), uuid.New()
	require.NoError(t, client.DB().Create(&[]models.CartItem{
		{BuyerID: buyer, ProductID: uuid.New(), Quantity: 1},
		{BuyerID: buyer, ProductID: uuid.New(), Quantity: 3},
		{BuyerID: other, ProductID: uuid.New(), Quantity: 2},
	}).Error)

	svc, err := NewService(NewRepository(client.DB()), nil)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(context.Background(), buyer))
	require.NoError(t, svc.Clear(context.Background(), buyer))

	items, err := svc.Items(context.Background(), buyer)
	require.NoError(t, err)
	assert.Empty(t, items)
	items, err = svc.Items(context.Background(), other)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestClearWrapsRepositoryFailure(t *testing.T) {
	svc, err := NewService(stubRepo{deleteFn: func(context.Context, uuid.UUID) (int64, error) {
		return 0, errors.New("connection reset")
	}}, nil)
	require.NoError(t, err)

	err = svc.Clear(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	err = svc.Clear(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
