package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	idempotencyHeader   = "idempotency-key"
	authorizationHeader = "authorization"
	tokenTTL            = time.Hour
	adminClientID       = "loadtest-admin"
)

// runner выполняет сценарии и считает единицы, оставшиеся в резерве.
type runner struct {
	cfg       config
	issuer    *auth.Issuer
	runID     string
	productID string
	col       *collector
	reserved  atomic.Int64
}

func run(ctx context.Context, cfg config, clients []storefrontv1.StorefrontClient, issuer *auth.Issuer) (report, error) {
	if len(clients) == 0 {
		return report{}, errors.New("no clients")
	}

	startedAt := time.Now()
	r := &runner{
		cfg:    cfg,
		issuer: issuer,
		runID:  fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid()),
		col:    newCollector(),
	}

	productID, initial, err := r.prepareProduct(ctx, clients[0])
	if err != nil {
		return report{}, err
	}
	r.productID = productID

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(cli storefrontv1.StorefrontClient) {
			defer wg.Done()
			for id := range jobs {
				r.runScenario(ctx, cli, id)
			}
		}(clients[workerID%len(clients)])
	}
	dispatchJobs(jobs, cfg.total)
	wg.Wait()

	duration := time.Since(startedAt)
	result := r.col.buildReport(startedAt, duration)

	final, err := r.currentStock(ctx, clients[0])
	if err != nil {
		return result, err
	}
	reserved := r.reserved.Load()
	result.Stock = stockReport{
		ProductID:     productID,
		InitialStock:  initial,
		FinalStock:    final,
		ReservedUnits: reserved,
		Conserved:     initial == final+reserved,
	}
	return result, nil
}

func dispatchJobs(jobs chan<- int, total int) {
	defer close(jobs)
	for i := 0; i < total; i++ {
		jobs <- i
	}
}

func (r *runner) prepareProduct(ctx context.Context, client storefrontv1.StorefrontClient) (string, int64, error) {
	if r.cfg.productID != "" {
		stock, err := r.currentStock(ctx, client)
		if err != nil {
			return "", 0, err
		}
		return r.cfg.productID, stock, nil
	}

	callCtx, cancel, err := r.callContext(ctx, adminClientID, true, "")
	if err != nil {
		return "", 0, err
	}
	defer cancel()

	resp, err := client.CreateProduct(callCtx, &storefrontv1.CreateProductRequest{
		Name:        "loadtest-" + r.runID,
		Description: "load test product",
		ImageURL:    "loadtest.png",
		PriceMinor:  100,
		Stock:       r.cfg.stock,
	})
	if err != nil {
		return "", 0, fmt.Errorf("create product: %w", err)
	}
	return resp.Product.ID, resp.Product.Stock, nil
}

func (r *runner) currentStock(ctx context.Context, client storefrontv1.StorefrontClient) (int64, error) {
	id := r.productID
	if id == "" {
		id = r.cfg.productID
	}
	callCtx, cancel, err := r.callContext(ctx, adminClientID, true, "")
	if err != nil {
		return 0, err
	}
	defer cancel()

	resp, err := client.GetProduct(callCtx, &storefrontv1.GetProductRequest{ProductID: id})
	if err != nil {
		return 0, fmt.Errorf("get product %s: %w", id, err)
	}
	return resp.Product.Stock, nil
}

// runScenario: каждый сценарий работает от имени отдельного клиента.
// Нехватка остатка (FailedPrecondition) ожидаема и не считается ошибкой.
func (r *runner) runScenario(ctx context.Context, client storefrontv1.StorefrontClient, index int) {
	scenarioStart := time.Now()
	scenarioCode := codes.OK
	defer func() {
		r.col.record("scenario", time.Since(scenarioStart), scenarioCode)
	}()

	clientID := fmt.Sprintf("%s-%s-%d", r.cfg.customerTag, r.runID, index)

	err := r.call(ctx, "AddItemToCart", clientID, fmt.Sprintf("lt-add-%s-%d", r.runID, index),
		func(callCtx context.Context) error {
			_, err := client.AddItemToCart(callCtx, &storefrontv1.AddItemToCartRequest{
				ClientID: clientID, ProductID: r.productID, Quantity: r.cfg.quantity,
			})
			return err
		})
	if status.Code(err) == codes.FailedPrecondition {
		r.col.reject()
		return
	}
	if err != nil {
		scenarioCode = grpcCode(err)
		return
	}
	r.reserved.Add(r.cfg.quantity)

	switch r.cfg.mode {
	case modeCheckout:
		err = r.call(ctx, "Checkout", clientID, fmt.Sprintf("lt-checkout-%s-%d", r.runID, index),
			func(callCtx context.Context) error {
				_, err := client.Checkout(callCtx, &storefrontv1.CheckoutRequest{ClientID: clientID})
				return err
			})
	case modeChurn:
		err = r.call(ctx, "RemoveItemFromCart", clientID, fmt.Sprintf("lt-remove-%s-%d", r.runID, index),
			func(callCtx context.Context) error {
				_, err := client.RemoveItemFromCart(callCtx, &storefrontv1.RemoveItemFromCartRequest{
					ClientID: clientID, ProductID: r.productID, Quantity: r.cfg.quantity,
				})
				return err
			})
		if err == nil {
			r.reserved.Add(-r.cfg.quantity)
		}
	}
	if err != nil {
		scenarioCode = grpcCode(err)
	}
}

func (r *runner) call(ctx context.Context, method, clientID, key string, fn func(context.Context) error) error {
	callCtx, cancel, err := r.callContext(ctx, clientID, false, key)
	if err != nil {
		r.col.record(method, 0, codes.Internal)
		return status.Error(codes.Internal, err.Error())
	}
	defer cancel()

	start := time.Now()
	err = fn(callCtx)
	r.col.record(method, time.Since(start), grpcCode(err))
	return err
}

func (r *runner) callContext(ctx context.Context, clientID string, admin bool, key string) (context.Context, context.CancelFunc, error) {
	token, err := r.issuer.Issue(domain.Identity{ClientID: clientID, IsAdmin: admin}, tokenTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("issue token: %w", err)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.timeout)
	pairs := []string{authorizationHeader, "Bearer " + token}
	if key != "" {
		pairs = append(pairs, idempotencyHeader, key)
	}
	return metadata.AppendToOutgoingContext(callCtx, pairs...), cancel, nil
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}
