package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/ticket-sale/internal/adapter/storage"
	"github.com/rl1809/ticket-sale/internal/applog"
	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/core/service"
)

const (
	concertID     = "stress-concert"
	initialStock  = 20
	totalRequests = 50
	queueSize     = 100
)

func main() {
	dsn := flag.String("db", "", "sqlite database file (defaults to a temporary file)")
	flag.Parse()

	ctx := context.Background()

	path := *dsn
	if path == "" {
		dir, err := os.MkdirTemp("", "ticket-sale-stress")
		if err != nil {
			log.Fatalf("failed to create temp dir: %v", err)
		}
		defer os.RemoveAll(dir)
		path = filepath.Join(dir, "stress.db")
	}

	db, err := storage.OpenSQLite(path)
	if err != nil {
		log.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()

	adapter := storage.NewSQLiteAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	now := time.Now()
	if err := adapter.CreateConcert(ctx, domain.Concert{
		ID:        concertID,
		Name:      "Stress Night",
		Artist:    "Load Generator",
		Price:     50,
		Stock:     initialStock,
		Venue:     "Localhost Hall",
		Date:      now.Add(30 * 24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		log.Fatalf("failed to create concert: %v", err)
	}

	// Every request comes from its own buyer so the per-account cap never
	// interferes with the stock count.
	for i := 0; i < totalRequests; i++ {
		if err := adapter.CreateBuyer(ctx, domain.Buyer{
			ID:        fmt.Sprintf("buyer-%d", i),
			Username:  fmt.Sprintf("buyer-%d", i),
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			log.Fatalf("failed to create buyer: %v", err)
		}
	}

	orderService := service.NewOrderService(service.OrderServiceProperty{
		UnitOfWork: adapter,
		History:    adapter,
		Cache:      storage.NopCache{},
		Logger:     applog.Discard(),
		QueueSize:  queueSize,
	})
	defer orderService.Close()

	// Drain the order queue in background
	go func() {
		for range orderService.CommittedOrders() {
		}
	}()

	var successCount, soldOutCount, otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := orderService.Purchase(ctx, service.PurchaseRequest{
				BuyerID:    fmt.Sprintf("buyer-%d", n),
				ConcertID:  concertID,
				Quantity:   1,
				AddonNames: []string{"Light Stick"},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("buyer-%d: %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Other Errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && soldOut == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d sold out\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d sold out, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	concert, err := adapter.GetConcert(ctx, concertID)
	if err != nil || concert == nil {
		log.Fatalf("failed to reload concert: %v", err)
	}
	fmt.Printf("Final Stock:      %d\n", concert.Stock)

	if concert.Stock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", concert.Stock)
	}
}
