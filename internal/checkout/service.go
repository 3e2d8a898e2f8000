package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/internal/checkout/helpers"
	"github.com/angelmondragon/settlement-engine/internal/totals"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/money"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

type totalsCalculator interface {
	Calculate(ctx context.Context, req totals.Request) (totals.Totals, error)
}

// ItemInput is a requested product line. Prices always come from the catalog.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// QuoteInput captures what the buyer submitted for checkout.
type QuoteInput struct {
	BuyerID         uuid.UUID
	Items           []ItemInput
	Contact         types.ContactSnapshot
	ShippingAddress types.Address
	Billing         *types.BillingSnapshot
	Flow            enums.CheckoutFlow
	PaymentMethod   enums.PaymentMethod
	CouponCode      string
}

// Service prices a checkout into a session.
type Service interface {
	Quote(ctx context.Context, input QuoteInput) (*Session, error)
}

type service struct {
	repo       Repository
	calculator totalsCalculator
	logg       *logger.Logger
}

// NewService builds the checkout service.
func NewService(repo Repository, calculator totalsCalculator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if calculator == nil {
		return nil, fmt.Errorf("totals calculator required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, calculator: calculator, logg: logg}, nil
}

func (s *service) Quote(ctx context.Context, input QuoteInput) (*Session, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(input.Items))
	qty := make([]int, len(input.Items))
	for i, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		ids[i] = item.ProductID
		qty[i] = item.Quantity
	}
	productOrder, quantities := helpers.MergeQuantities(ids, qty)

	products, err := s.repo.FindProducts(ctx, productOrder)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	priced := make([]models.Product, 0, len(productOrder))
	for _, id := range productOrder {
		product, ok := byID[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id.String()})
		}
		if !product.Active || product.Seller == nil || !product.Seller.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"product_id": id.String()})
		}
		priced = append(priced, product)
	}

	sellerOrder, grouped := helpers.GroupBySeller(priced, func(p models.Product) uuid.UUID { return p.SellerID })
	session := &Session{
		BuyerID:         input.BuyerID,
		Contact:         input.Contact,
		ShippingAddress: input.ShippingAddress,
		Billing:         input.Billing,
		Flow:            input.Flow,
		PaymentMethod:   input.PaymentMethod,
		CouponCode:      strings.TrimSpace(input.CouponCode),
		Groups:          make([]SellerGroup, 0, len(sellerOrder)),
	}
	for _, sellerID := range sellerOrder {
		group := grouped[sellerID]
		seller := group[0].Seller
		sg := SellerGroup{
			Seller: Seller{
				ID:            seller.ID,
				Name:          seller.Name,
				Email:         seller.Email,
				Tier:          seller.Tier,
				State:         seller.State,
				PickupPincode: seller.PickupPincode,
			},
			Items: make([]totals.LineItem, 0, len(group)),
		}
		for _, p := range group {
			sg.Items = append(sg.Items, totals.LineItem{
				ProductID:  p.ID,
				Name:       p.Name,
				Quantity:   quantities[p.ID],
				UnitPrice:  p.UnitPrice,
				Dimensions: p.Dimensions,
			})
		}
		session.Groups = append(session.Groups, sg)
	}

	computed, err := s.calculator.Calculate(ctx, session.TotalsRequest())
	if err != nil {
		return nil, err
	}
	session.Totals = computed

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"buyer_id": input.BuyerID.String(),
		"sellers":  len(session.Groups),
		"total":    computed.TotalAmount.StringFixed(money.Scale),
	})
	s.logg.Info(logCtx, "checkout quoted")
	return session, nil
}

func validateInput(input QuoteInput) error {
	if err := helpers.ValidateFlow(input.Flow, input.PaymentMethod, len(input.Items)); err != nil {
		return err
	}
	if err := helpers.ValidateContact(input.Contact); err != nil {
		return err
	}
	if err := helpers.ValidateDeliveryAddress(input.ShippingAddress); err != nil {
		return err
	}
	return helpers.ValidateBilling(input.Billing)
}
