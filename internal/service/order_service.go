package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gemcart/internal/checkout"
	"gemcart/internal/model"
	"gemcart/internal/payment"
	"gemcart/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const (
	// placementTimeout bounds the whole placement attempt, including the
	// provider round trip for card verification.
	placementTimeout = 30 * time.Second

	// compensationAttempts bounds retries of a single compensating stock
	// release on the non-transactional path.
	compensationAttempts = 3
)

// orderService implements OrderService.
type orderService struct {
	db          repository.Querier
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	settings    repository.SettingsRepository
	invoices    repository.InvoiceSequencer
	provider    payment.Provider
	codec       *payment.FieldCodec
	logger      zerolog.Logger
}

// NewOrderService creates a new order service. db is the pool the placement
// path falls back to when transactions are unavailable.
func NewOrderService(
	db repository.Querier,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	settings repository.SettingsRepository,
	invoices repository.InvoiceSequencer,
	provider payment.Provider,
	codec *payment.FieldCodec,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		db:          db,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		settings:    settings,
		invoices:    invoices,
		provider:    provider,
		codec:       codec,
		logger:      logger.With().Str("service", "order").Logger(),
	}
}

// CreatePaymentIntent prices the cart and registers a provider intent.
func (s *orderService) CreatePaymentIntent(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.PaymentIntentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, placementTimeout)
	defer cancel()

	policy, err := s.settings.GetPolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout policy: %w", err)
	}

	if !policy.CardEnabled {
		return nil, model.ErrPaymentMethodDisabled
	}

	_, _, breakdown, err := s.priceCart(ctx, req, policy)
	if err != nil {
		return nil, err
	}

	intent, err := s.provider.CreateIntent(ctx, breakdown.MinorUnits, strings.ToLower(policy.Currency), map[string]string{
		"userId": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	s.logger.Info().
		Str("intent_id", intent.ID).
		Int64("amount", intent.Amount).
		Str("user_id", userID).
		Msg("payment intent created")

	return &model.PaymentIntentResponse{
		ClientSecret:   intent.ClientSecret,
		Amount:         breakdown.MinorUnits,
		Currency:       breakdown.Currency,
		SubTotal:       breakdown.SubTotal,
		ShippingCost:   breakdown.ShippingCost,
		Discount:       breakdown.Discount,
		BundleDiscount: breakdown.BundleDiscount,
		GiftWrapFee:    breakdown.GiftWrapFee,
		TotalAmount:    breakdown.Total,
	}, nil
}

// PlaceOrder runs the placement pipeline: validate payment method → price →
// verify payment → reserve stock → allocate invoice → persist, with at most
// one internal retry.
func (s *orderService) PlaceOrder(ctx context.Context, userID string, req *model.PlaceOrderRequest) (*model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, placementTimeout)
	defer cancel()

	policy, err := s.settings.GetPolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout policy: %w", err)
	}

	if !policy.MethodEnabled(req.PaymentMethod) {
		return nil, model.ErrPaymentMethodDisabled
	}

	cart, products, breakdown, err := s.priceCart(ctx, &req.CheckoutRequest, policy)
	if err != nil {
		return nil, err
	}

	var intentID *string
	var intentSnapshot json.RawMessage
	if req.PaymentMethod == model.PaymentCard {
		snapshot, err := s.verifyCardPayment(ctx, req.PaymentIntentID, breakdown)
		if err != nil {
			return nil, err
		}
		intentID = &req.PaymentIntentID
		intentSnapshot = snapshot
	}

	cardInfo, err := s.codec.Encrypt(req.CardInfo)
	if err != nil {
		return nil, err
	}
	paymentIntent, err := s.codec.Encrypt(intentSnapshot)
	if err != nil {
		return nil, err
	}

	useTx := true
	var placeErr error
	for attempt := 0; attempt < 2; attempt++ {
		order, err := s.attemptPlacement(ctx, userID, req, cart, products, breakdown, cardInfo, paymentIntent, intentID, useTx)
		if err == nil {
			s.logger.Info().
				Str("order_id", order.ID.String()).
				Int64("invoice", order.Invoice).
				Str("payment_method", string(order.PaymentMethod)).
				Float64("total", order.TotalAmount).
				Msg("order placed")
			return order, nil
		}
		placeErr = err

		if useTx && isTxUnsupported(err) {
			s.logger.Warn().Err(err).Msg("transactions unsupported, retrying placement without one")
			useTx = false
			continue
		}
		if useTx && attempt == 0 && isTransientTxError(err) {
			s.logger.Warn().Err(err).Msg("transient transaction conflict, retrying placement")
			continue
		}
		break
	}

	return nil, placeErr
}

// verifyCardPayment binds the authorised charge to this exact priced cart: the
// provider-side intent must have succeeded for precisely the minor-unit total,
// so a client cannot under-pay after price or shipping changes.
func (s *orderService) verifyCardPayment(ctx context.Context, intentID string, breakdown *checkout.Breakdown) (json.RawMessage, error) {
	if intentID == "" {
		return nil, model.ErrMissingPaymentIntent
	}

	intent, err := s.provider.GetIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	if intent.Status != payment.IntentSucceeded {
		s.logger.Warn().
			Str("intent_id", intentID).
			Str("status", intent.Status).
			Msg("payment intent has not succeeded")
		return nil, model.ErrPaymentNotSucceeded
	}

	if intent.Amount != breakdown.MinorUnits {
		s.logger.Warn().
			Str("intent_id", intentID).
			Int64("paid", intent.Amount).
			Int64("expected", breakdown.MinorUnits).
			Msg("payment amount mismatch")
		return nil, model.ErrPaymentAmountMismatch
	}

	return json.Marshal(intent)
}

// attemptPlacement executes one placement attempt, transactionally when
// useTx is set. Without a transaction each stock decrement still individually
// never oversells, and a failure reverses this attempt's own decrements.
func (s *orderService) attemptPlacement(
	ctx context.Context,
	userID string,
	req *model.PlaceOrderRequest,
	cart []checkout.LineItem,
	products map[string]model.Product,
	breakdown *checkout.Breakdown,
	cardInfo, paymentIntent json.RawMessage,
	intentID *string,
	useTx bool,
) (*model.Order, error) {
	var q repository.Querier = s.db
	var tx pgx.Tx
	var reserved []checkout.LineItem

	if useTx {
		var err error
		tx, err = s.orderRepo.BeginTx(ctx)
		if err != nil {
			return nil, err
		}
		q = tx
	}

	fail := func(err error) (*model.Order, error) {
		if tx != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error().Err(rbErr).Msg("failed to rollback placement transaction")
			}
		} else {
			s.compensate(ctx, reserved)
		}
		return nil, err
	}

	for _, item := range cart {
		if err := s.productRepo.Reserve(ctx, q, item.ProductID, item.Quantity); err != nil {
			return fail(err)
		}
		if tx == nil {
			reserved = append(reserved, item)
		}
	}

	invoice, err := s.invoices.Next(ctx, q)
	if err != nil {
		return fail(err)
	}

	now := time.Now().UTC()
	order := &model.Order{
		ID:              uuid.New(),
		Invoice:         invoice,
		UserID:          userID,
		SubTotal:        breakdown.SubTotal,
		ShippingCost:    breakdown.ShippingCost,
		Discount:        breakdown.Discount,
		BundleDiscount:  breakdown.BundleDiscount,
		GiftWrapFee:     breakdown.GiftWrapFee,
		TotalAmount:     breakdown.Total,
		GiftWrap:        giftWrapFromRequest(req.GiftWrap),
		PaymentMethod:   req.PaymentMethod,
		PaymentIntentID: intentID,
		Status:          model.StatusPending,
		StatusHistory: []model.StatusEntry{
			{Status: model.StatusPending, Source: model.SourceSystem, OccurredAt: now},
		},
		CardInfo:      cardInfo,
		PaymentIntent: paymentIntent,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, item := range cart {
		product := products[item.ProductID]
		order.Cart = append(order.Cart, model.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
			ProductType: product.ProductType,
		})
	}

	if err := s.orderRepo.Create(ctx, q, order); err != nil {
		return fail(err)
	}

	if tx != nil {
		if err := tx.Commit(ctx); err != nil {
			return fail(fmt.Errorf("failed to commit order placement: %w", err))
		}
	}

	return order, nil
}

// compensate reverses this attempt's decrements after a non-transactional
// failure. Errors are logged and swallowed; the primary failure is already
// being reported.
func (s *orderService) compensate(ctx context.Context, reserved []checkout.LineItem) {
	if len(reserved) == 0 {
		return
	}

	// The request context may already be cancelled; compensation still has
	// to run.
	ctx = context.WithoutCancel(ctx)

	for _, item := range reserved {
		var err error
		for attempt := 1; attempt <= compensationAttempts; attempt++ {
			if err = s.productRepo.Release(ctx, item.ProductID, item.Quantity); err == nil {
				break
			}
		}
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("product_id", item.ProductID).
				Int("quantity", item.Quantity).
				Msg("stock compensation failed, stock drift requires manual correction")
		}
	}
}

// priceCart normalises the cart, fetches authoritative prices and computes
// the breakdown. It performs no writes.
func (s *orderService) priceCart(ctx context.Context, req *model.CheckoutRequest, policy *checkout.Policy) ([]checkout.LineItem, map[string]model.Product, *checkout.Breakdown, error) {
	cart, err := checkout.NormalizeCart(req.Cart)
	if err != nil {
		return nil, nil, nil, err
	}

	ids := make([]string, len(cart))
	for i, item := range cart {
		ids[i] = item.ProductID
	}

	available, err := s.productRepo.GetPurchasable(ctx, ids)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	if len(available) != len(cart) {
		s.logger.Warn().
			Int("requested", len(cart)).
			Int("available", len(available)).
			Msg("cart references unavailable products")
		return nil, nil, nil, model.ErrProductsUnavailable
	}

	products := make(map[string]model.Product, len(available))
	prices := make(map[string]float64, len(available))
	for _, p := range available {
		products[p.ID] = p
		prices[p.ID] = p.Price
	}

	breakdown, err := checkout.Calculate(cart, prices, req.Discount, req.ShippingOption, req.City, req.GiftWrap, policy)
	if err != nil {
		return nil, nil, nil, err
	}

	return cart, products, breakdown, nil
}

// GetByID retrieves an order with items and status history.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// UpdateStatus applies an admin-sourced status transition.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error {
	if !model.ValidOrderStatus(status) {
		return model.ErrInvalidStatus
	}

	matched, err := s.orderRepo.UpdateStatusByID(ctx, id, status, model.SourceAdmin)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if matched {
		return nil
	}

	// No row matched: either the order is already in this status (a no-op)
	// or it does not exist.
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if order == nil {
		return model.ErrOrderNotFound
	}
	return nil
}

// GetPaymentDetails decrypts the stored payment snapshots for a single order.
func (s *orderService) GetPaymentDetails(ctx context.Context, id uuid.UUID) (*model.PaymentDetails, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	cardInfo, err := s.codec.Decrypt(order.CardInfo)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to decrypt card info")
		return nil, fmt.Errorf("failed to decrypt card info: %w", err)
	}
	paymentIntent, err := s.codec.Decrypt(order.PaymentIntent)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to decrypt payment intent")
		return nil, fmt.Errorf("failed to decrypt payment intent: %w", err)
	}

	return &model.PaymentDetails{
		OrderID:       order.ID,
		CardInfo:      cardInfo,
		PaymentIntent: paymentIntent,
	}, nil
}

func giftWrapFromRequest(req model.GiftWrapRequest) model.GiftWrap {
	wrap := model.GiftWrap{
		Enabled: req.Enabled.Bool(),
		Message: req.Message,
	}
	if wrap.Enabled {
		wrap.Type = req.Type
		if wrap.Type != model.GiftWrapPremium {
			wrap.Type = model.GiftWrapStandard
		}
	}
	return wrap
}

// isTxUnsupported reports whether the store rejected the multi-statement
// transaction itself, e.g. behind a statement-pooling proxy.
func isTxUnsupported(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.FeatureNotSupported ||
			pgErr.Code == pgerrcode.ProtocolViolation
	}
	return false
}

// isTransientTxError reports whether the failure is a retryable transaction
// conflict.
func isTransientTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected
	}
	return false
}
