package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/port"
)

const (
	DefaultMaxTicketsPerBuyer = 2
	DefaultSaleCutoff         = 7 * 24 * time.Hour
	DefaultTxTimeout          = 5 * time.Second
	DefaultMaxRetries         = 3

	maxAddonNameLength = 255
)

// PurchasePolicy holds the business constants of a purchase. Zero fields
// fall back to the defaults.
type PurchasePolicy struct {
	MaxTicketsPerBuyer int
	SaleCutoff         time.Duration
	TxTimeout          time.Duration
	MaxRetries         int
}

func DefaultPurchasePolicy() PurchasePolicy {
	return PurchasePolicy{
		MaxTicketsPerBuyer: DefaultMaxTicketsPerBuyer,
		SaleCutoff:         DefaultSaleCutoff,
		TxTimeout:          DefaultTxTimeout,
		MaxRetries:         DefaultMaxRetries,
	}
}

func (p PurchasePolicy) withDefaults() PurchasePolicy {
	d := DefaultPurchasePolicy()
	if p.MaxTicketsPerBuyer <= 0 {
		p.MaxTicketsPerBuyer = d.MaxTicketsPerBuyer
	}
	if p.SaleCutoff <= 0 {
		p.SaleCutoff = d.SaleCutoff
	}
	if p.TxTimeout <= 0 {
		p.TxTimeout = d.TxTimeout
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = d.MaxRetries
	}
	return p
}

type PurchaseRequest struct {
	BuyerID    string
	ConcertID  string
	Quantity   int
	AddonNames []string

	// IdempotencyKey is optional. Two requests of the same buyer with the
	// same key produce at most one order.
	IdempotencyKey string
}

type OrderService struct {
	uow     port.UnitOfWork
	history port.OrderHistoryRepository
	cache   port.CacheRepository
	logger  *logrus.Logger
	policy  PurchasePolicy
	now     func() time.Time

	// queueMu guards sends on orderQueue against Close.
	queueMu    sync.RWMutex
	queueDone  bool
	orderQueue chan domain.Order
}

type OrderServiceProperty struct {
	UnitOfWork port.UnitOfWork
	History    port.OrderHistoryRepository
	Cache      port.CacheRepository
	Logger     *logrus.Logger
	Policy     PurchasePolicy

	// Clock defaults to time.Now.
	Clock func() time.Time

	// QueueSize bounds the committed-order queue drained by receipt
	// workers. With zero, orders only reach a worker that is already
	// waiting.
	QueueSize int
}

func NewOrderService(props OrderServiceProperty) *OrderService {
	s := &OrderService{
		uow:     props.UnitOfWork,
		history: props.History,
		cache:   props.Cache,
		logger:  props.Logger,
		policy:  props.Policy.withDefaults(),
		now:     props.Clock,

		orderQueue: make(chan domain.Order, max(props.QueueSize, 0)),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s
}

// Purchase validates and applies a ticket purchase in one transaction.
// On any error nothing the purchase wrote is visible.
func (s *OrderService) Purchase(ctx context.Context, req PurchaseRequest) (domain.Order, error) {
	addons, err := validatePurchase(req)
	if err != nil {
		return domain.Order{}, err
	}

	if req.IdempotencyKey != "" {
		key := fmt.Sprintf("purchase:%s:%s", req.BuyerID, req.IdempotencyKey)

		ok, err := s.cache.SetIdempotency(ctx, key)
		if err != nil {
			return domain.Order{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return domain.Order{}, domain.ErrDuplicateRequest
		}

		order, err := s.purchaseWithRetry(ctx, req.BuyerID, req.ConcertID, req.Quantity, addons)
		if err != nil {
			if releaseErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); releaseErr != nil {
				s.logger.WithContext(ctx).WithError(releaseErr).WithField("key", key).Warn("failed to release idempotency key")
			}
			return domain.Order{}, err
		}

		s.publish(ctx, order)
		return order, nil
	}

	order, err := s.purchaseWithRetry(ctx, req.BuyerID, req.ConcertID, req.Quantity, addons)
	if err != nil {
		return domain.Order{}, err
	}

	s.publish(ctx, order)
	return order, nil
}

func (s *OrderService) purchaseWithRetry(ctx context.Context, buyerID, concertID string, quantity int, addons []string) (domain.Order, error) {
	for attempt := 0; ; attempt++ {
		order, err := s.purchaseOnce(ctx, buyerID, concertID, quantity, addons)
		if err == nil {
			return order, nil
		}

		if !errors.Is(err, domain.ErrConflict) || attempt >= s.policy.MaxRetries || ctx.Err() != nil {
			s.logRejection(ctx, err, buyerID, concertID, quantity)
			return domain.Order{}, err
		}

		s.logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
			"buyer_id":   buyerID,
			"concert_id": concertID,
			"attempt":    attempt + 1,
		}).Warn("purchase conflict, retrying")
	}
}

func (s *OrderService) purchaseOnce(ctx context.Context, buyerID, concertID string, quantity int, addons []string) (domain.Order, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.policy.TxTimeout)
	defer cancel()

	var order domain.Order

	err := s.uow.WithinTx(txCtx, func(ctx context.Context, tx port.PurchaseTx) error {
		concert, err := tx.LockConcert(ctx, concertID)
		if err != nil {
			return err
		}
		if concert == nil {
			return fmt.Errorf("%w: concert %q does not exist", domain.ErrNotFound, concertID)
		}

		now := s.now()
		deadline := concert.SaleDeadline(s.policy.SaleCutoff)
		if now.After(deadline) {
			return fmt.Errorf("%w: tickets for %q had to be bought before %s",
				domain.ErrSalesClosed, concert.Name, deadline.Format(time.RFC3339))
		}

		held, err := tx.SumQuantity(ctx, buyerID, concertID)
		if err != nil {
			return err
		}
		if held+quantity > s.policy.MaxTicketsPerBuyer {
			return fmt.Errorf("%w: you already hold %d of the %d tickets allowed per account",
				domain.ErrQuotaExceeded, held, s.policy.MaxTicketsPerBuyer)
		}

		if concert.Stock < quantity {
			return fmt.Errorf("%w: %d requested, %d left", domain.ErrInsufficientStock, quantity, concert.Stock)
		}

		total := concert.Price * int64(quantity)

		concert.Stock -= quantity
		concert.UpdatedAt = now
		if err := tx.UpdateConcertStock(ctx, *concert); err != nil {
			if errors.Is(err, domain.ErrOptimisticLock) {
				return fmt.Errorf("%w: %w", domain.ErrConflict, err)
			}
			return err
		}

		order = domain.Order{
			ID:         uuid.NewString(),
			BuyerID:    buyerID,
			ConcertID:  concertID,
			Quantity:   quantity,
			TotalPrice: total,
			Addons:     make([]domain.Addon, 0, len(addons)),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		for i, name := range addons {
			addon := domain.Addon{
				ID:       uuid.NewString(),
				OrderID:  order.ID,
				ItemName: name,
				Position: i,
			}
			if err := tx.CreateAddon(ctx, addon); err != nil {
				return err
			}
			order.Addons = append(order.Addons, addon)
		}

		return nil
	})
	if err != nil {
		if txCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return domain.Order{}, fmt.Errorf("%w: transaction did not finish within %s", domain.ErrConflict, s.policy.TxTimeout)
		}
		return domain.Order{}, err
	}

	return order, nil
}

// ListOrders returns the buyer's order history, newest first. A buyer
// without orders gets an empty slice.
func (s *OrderService) ListOrders(ctx context.Context, buyerID string) ([]domain.OrderHistoryEntry, error) {
	if strings.TrimSpace(buyerID) == "" {
		return nil, fmt.Errorf("%w: buyer id is required", domain.ErrValidation)
	}

	entries, err := s.history.ListOrdersByBuyer(ctx, buyerID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("buyer_id", buyerID).Error("failed to list orders")
		return nil, err
	}

	return entries, nil
}

// CommittedOrders is drained by receipt workers. It is closed by Close.
func (s *OrderService) CommittedOrders() <-chan domain.Order {
	return s.orderQueue
}

// Close stops the committed-order queue. Purchases that commit afterwards
// invalidate the catalog cache inline. Calling Close twice is a no-op.
func (s *OrderService) Close() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if !s.queueDone {
		s.queueDone = true
		close(s.orderQueue)
	}
}

// publish hands a committed order to the receipt workers. A full or
// closed queue never blocks the buyer; the catalog cache is invalidated
// inline instead.
func (s *OrderService) publish(ctx context.Context, order domain.Order) {
	if s.enqueue(order) {
		return
	}

	if err := s.cache.InvalidateConcerts(context.WithoutCancel(ctx)); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("failed to invalidate catalog cache")
	}
}

func (s *OrderService) enqueue(order domain.Order) bool {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	if s.queueDone {
		return false
	}
	select {
	case s.orderQueue <- order:
		return true
	default:
		return false
	}
}

func (s *OrderService) logRejection(ctx context.Context, err error, buyerID, concertID string, quantity int) {
	entry := s.logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
		"buyer_id":   buyerID,
		"concert_id": concertID,
		"quantity":   quantity,
	})

	if isBusinessError(err) || errors.Is(err, context.Canceled) {
		entry.Info("purchase rejected")
		return
	}
	entry.Error("purchase failed")
}

func validatePurchase(req PurchaseRequest) ([]string, error) {
	if strings.TrimSpace(req.BuyerID) == "" {
		return nil, fmt.Errorf("%w: buyer id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.ConcertID) == "" {
		return nil, fmt.Errorf("%w: concert id is required", domain.ErrValidation)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrValidation, req.Quantity)
	}

	addons := make([]string, 0, len(req.AddonNames))
	for i, name := range req.AddonNames {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: add-on #%d is empty", domain.ErrValidation, i+1)
		}
		if utf8.RuneCountInString(name) > maxAddonNameLength {
			return nil, fmt.Errorf("%w: add-on #%d is longer than %d characters", domain.ErrValidation, i+1, maxAddonNameLength)
		}
		addons = append(addons, name)
	}

	return addons, nil
}

func isBusinessError(err error) bool {
	for _, target := range []error{
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrSalesClosed,
		domain.ErrQuotaExceeded,
		domain.ErrInsufficientStock,
		domain.ErrDuplicateRequest,
		domain.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
