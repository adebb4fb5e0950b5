// Command loadtest нагружает витрину конкурентными резервами одного товара
// и проверяет, что остаток сохраняется: начальный остаток равен конечному
// плюс число успешно зарезервированных единиц.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

type loadMode string

const (
	modeReserve  loadMode = "reserve"
	modeCheckout loadMode = "checkout"
	modeChurn    loadMode = "churn"
)

const envAuthSecret = "STOREFRONT_AUTH__SECRET"

type config struct {
	addr        string
	total       int
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	quantity    int64
	stock       int64
	productID   string
	customerTag string
	secret      string
	issuer      string
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	var cfg config
	var modeValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios to execute")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 8, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modeReserve), "load mode: reserve | checkout | churn")
	fs.Int64Var(&cfg.quantity, "quantity", 1, "units reserved per scenario")
	fs.Int64Var(&cfg.stock, "stock", 100, "initial stock of the product created for the run")
	fs.StringVar(&cfg.productID, "product-id", "", "use an existing product instead of creating one")
	fs.StringVar(&cfg.customerTag, "customer-tag", "load", "client id prefix")
	fs.StringVar(&cfg.secret, "secret", os.Getenv(envAuthSecret), "HS256 secret used to mint tokens (fallback: "+envAuthSecret+")")
	fs.StringVar(&cfg.issuer, "issuer", "storefront", "token issuer")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.productID = strings.TrimSpace(cfg.productID)

	switch {
	case cfg.total <= 0:
		return cfg, errors.New("total must be > 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	case cfg.productID == "" && cfg.stock <= 0:
		return cfg, errors.New("stock must be > 0 when product-id is not set")
	case strings.TrimSpace(cfg.customerTag) == "":
		return cfg, errors.New("customer-tag is required")
	case strings.TrimSpace(cfg.secret) == "":
		return cfg, fmt.Errorf("secret is required (flag -secret or %s)", envAuthSecret)
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeReserve:
		return modeReserve, nil
	case modeCheckout:
		return modeCheckout, nil
	case modeChurn:
		return modeChurn, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	issuer, err := auth.NewIssuer(auth.Settings{Secret: cfg.secret, Issuer: cfg.issuer})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid auth settings: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]storefrontv1.StorefrontClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithUserAgent(version.UserAgent("loadtest")),
		)
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, storefrontv1.NewStorefrontClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result, err := run(context.Background(), cfg, clients, issuer)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 || !result.Stock.Conserved {
		os.Exit(1)
	}
}
