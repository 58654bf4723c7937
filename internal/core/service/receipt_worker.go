package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/port"
)

// ReceiptWorker drains committed orders until the queue is closed. For
// each order it drops the cached catalog, whose stock figures are now
// stale, and logs the receipt.
func ReceiptWorker(id int, queue <-chan domain.Order, cache port.CacheRepository, logger *logrus.Logger) {
	for order := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		entry := logger.WithFields(logrus.Fields{
			"worker":     id,
			"order_id":   order.ID,
			"buyer_id":   order.BuyerID,
			"concert_id": order.ConcertID,
		})

		if err := cache.InvalidateConcerts(ctx); err != nil {
			entry.WithError(err).Warn("failed to invalidate catalog cache")
		}

		entry.WithFields(logrus.Fields{
			"quantity":    order.Quantity,
			"total_price": order.TotalPrice,
			"addons":      len(order.Addons),
		}).Info("order committed")

		cancel()
	}
}
