package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/goods-issue/internal/adapter/handler"
	"github.com/rl1809/goods-issue/internal/app"
	"github.com/rl1809/goods-issue/internal/config"
	"github.com/rl1809/goods-issue/internal/core/domain"
)

const (
	orderID       = 1
	initialStock  = 50
	demanded      = 20
	totalRequests = 50
)

var scope = domain.ScopeKey{Material: domain.MaterialSteel, ArticleID: 1}

func main() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "goods-issue-stress")
	if err != nil {
		log.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	// Set REDIS_ADDR to also exercise idempotency keys and order locks
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.StoreDriver = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(dir, "stress.db")
	cfg.Notifier = config.NotifierLog

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to wire application: %v", err)
	}
	defer a.Close()

	// Seed one completed order with a single steel line
	if err := a.Store.SaveOrder(ctx, domain.Order{ID: orderID, Number: "STRESS-1", Status: domain.OrderStatusCompleted}); err != nil {
		log.Fatalf("failed to save order: %v", err)
	}
	if _, err := a.Store.AddRequirement(ctx, domain.RequirementLine{
		OrderID: orderID, Material: domain.MaterialSteel, ArticleID: scope.ArticleID, ArticleRef: "S-1", QuantityDemanded: demanded,
	}); err != nil {
		log.Fatalf("failed to add requirement: %v", err)
	}
	if _, err := a.Store.AddStock(ctx, domain.StockRecord{Scope: scope, CurrentQuantity: initialStock}); err != nil {
		log.Fatalf("failed to add stock: %v", err)
	}

	// Serve gRPC on a random local port
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	grpcServer := grpc.NewServer()
	handler.RegisterReconcilerServer(grpcServer, handler.NewGRPCHandler(a.Reconciler, a.Coordinator, logger))
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()
	defer grpcServer.GracefulStop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()
	client := handler.NewReconcilerClient(conn)

	// Counters
	var issuedCount atomic.Int32
	var noopCount atomic.Int32
	var failCount atomic.Int32

	// Every request redelivers the same completion event
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			resp, err := client.OrderReachedCompletion(ctx, &handler.OrderEventRequest{
				RequestID: uuid.NewString(),
				OrderID:   orderID,
			})
			switch {
			case err != nil || !resp.Success:
				failCount.Add(1)
			case resp.Summary != nil && resp.Summary.Processed() > 0:
				issuedCount.Add(1)
			default:
				noopCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	issued := issuedCount.Load()
	noop := noopCount.Load()
	failed := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Demanded:         %d\n", demanded)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Issued:           %d\n", issued)
	fmt.Printf("No-op:            %d\n", noop)
	fmt.Printf("Failed:           %d\n", failed)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if issued == 1 && failed == 0 {
		fmt.Printf("PASS: Exactly 1 event issued stock, %d were no-ops\n", noop)
	} else {
		fmt.Printf("FAIL: Expected 1 issuing event and 0 failures, got %d/%d\n", issued, failed)
	}

	rec, err := a.Store.GetStock(ctx, scope)
	if err != nil || rec == nil {
		log.Fatalf("failed to read stock: %v", err)
	}
	fmt.Printf("Final Stock:      %d\n", rec.CurrentQuantity)

	if rec.CurrentQuantity == initialStock-demanded {
		fmt.Printf("PASS: Stock reduced once to %d\n", rec.CurrentQuantity)
	} else {
		fmt.Printf("FAIL: Expected stock %d, got %d\n", initialStock-demanded, rec.CurrentQuantity)
	}

	history, err := a.Store.ListHistory(ctx, domain.OrderReference(orderID))
	if err != nil {
		log.Fatalf("failed to read history: %v", err)
	}
	if len(history) == 1 {
		fmt.Println("PASS: One issue entry in history")
	} else {
		fmt.Printf("FAIL: Expected 1 issue entry, got %d\n", len(history))
	}
}
