package httpsvc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/consistency"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/events"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	httpsvc "github.com/vladislavdragonenkov/storefront/internal/service/http"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type envelope struct {
	Status string          `json:"status"`
	Reason string          `json:"reason"`
	Result json.RawMessage `json:"result"`
}

type fixture struct {
	handler  http.Handler
	products domain.ProductRepository
	issuer   *auth.Issuer
}

func setupGateway(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	base := logrus.New()
	base.SetLevel(logrus.PanicLevel)
	logger := base.WithField("component", "test")

	reg := prometheus.NewRegistry()
	m := metrics.NewCommerceMetricsWithRegisterer(reg)
	policy := consistency.Policy{MaxAttempts: 50, BaseDelay: time.Microsecond, MaxDelay: 100 * time.Microsecond}

	products := memory.NewProductRepository()
	recorder := events.NewRecorder(memory.NewOutboxRepository(), memory.NewTimelineRepository(), logger, m)
	stock := inventory.NewController(products, inventory.WithPolicy(policy))
	catalogSvc := catalog.NewService(products, stock, catalog.WithEvents(recorder), catalog.WithLogger(logger))
	machine := order.NewMachine(memory.NewOrderRepository(), stock, catalogSvc, order.WithEvents(recorder), order.WithPolicy(policy), order.WithLogger(logger))
	manager := cart.NewManager(memory.NewCartRepository(), stock, catalogSvc, machine, cart.WithEvents(recorder), cart.WithPolicy(policy), cart.WithLogger(logger))

	api := grpcsvc.NewServer(manager, machine, catalogSvc,
		grpcsvc.WithIdempotency(memory.NewIdempotencyRepository(), time.Hour),
		grpcsvc.WithLogger(logger),
	)

	settings := auth.Settings{Secret: "http-test-secret", Issuer: "storefront-test"}
	resolver, err := auth.NewResolver(settings)
	require.NoError(t, err)
	issuer, err := auth.NewIssuer(settings)
	require.NoError(t, err)

	gw := httpsvc.NewGateway(api, resolver,
		httpsvc.WithLogger(logger),
		httpsvc.WithMetrics(metrics.NewHTTPMetricsWithRegisterer(reg)),
	)
	return &fixture{handler: gw.Handler(), products: products, issuer: issuer}
}

func (f *fixture) token(t *testing.T, clientID string, admin bool) string {
	t.Helper()
	token, err := f.issuer.Issue(domain.Identity{ClientID: clientID, IsAdmin: admin}, time.Minute)
	require.NoError(t, err)
	return token
}

func (f *fixture) do(t *testing.T, method, path string, headers map[string]string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (f *fixture) createProduct(t *testing.T, name string, price, stock int64) string {
	t.Helper()
	w, env := f.do(t, http.MethodPost, "/product/create", bearer(f.token(t, "root", true)), map[string]any{
		"productname": name, "description": "desc", "imageURL": "img/" + name, "price": price, "instock": stock,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp storefrontv1.ProductResponse
	require.NoError(t, json.Unmarshal(env.Result, &resp))
	return resp.Product.ID
}

func (f *fixture) stock(t *testing.T, productID string) int64 {
	t.Helper()
	p, err := f.products.Get(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func TestGateway_CartAndOrderFlow(t *testing.T) {
	f := setupGateway(t)
	lamp := f.createProduct(t, "lamp", 1500, 10)
	alice := bearer(f.token(t, "alice", false))

	w, env := f.do(t, http.MethodPost, "/cart/alice/additem/"+lamp, alice, map[string]any{"quantity": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "Success", env.Status)
	var added storefrontv1.AddItemToCartResponse
	require.NoError(t, json.Unmarshal(env.Result, &added))
	require.Equal(t, int64(4), added.Cart.TotalQuantity)
	require.Equal(t, int64(6000), added.Cart.TotalCostMinor)
	require.Equal(t, int64(6), f.stock(t, lamp))

	w, _ = f.do(t, http.MethodDelete, "/cart/alice/removeitem/"+lamp, alice, map[string]any{"quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, int64(7), f.stock(t, lamp))

	w, env = f.do(t, http.MethodGet, "/cart/alice/checkout", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var checkout storefrontv1.CheckoutResponse
	require.NoError(t, json.Unmarshal(env.Result, &checkout))
	require.Equal(t, int64(3), checkout.Order.TotalQuantity)
	require.Equal(t, "open", checkout.Order.State)

	w, env = f.do(t, http.MethodGet, "/order/"+checkout.Order.ID+"/details", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail storefrontv1.GetOrderDetailResponse
	require.NoError(t, json.Unmarshal(env.Result, &detail))
	require.NotEmpty(t, detail.Timeline)

	admin := bearer(f.token(t, "root", true))
	w, _ = f.do(t, http.MethodPost, "/order/"+checkout.Order.ID+"/update", admin, map[string]any{"productid": lamp, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, int64(5), f.stock(t, lamp))

	w, _ = f.do(t, http.MethodPost, "/order/"+checkout.Order.ID+"/confirm", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, env = f.do(t, http.MethodPost, "/order/"+checkout.Order.ID+"/completed", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var completed storefrontv1.OrderResponse
	require.NoError(t, json.Unmarshal(env.Result, &completed))
	require.Equal(t, "completed", completed.Order.State)

	w, env = f.do(t, http.MethodPost, "/order/"+checkout.Order.ID+"/reject", admin, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "Failed", env.Status)
	require.NotEmpty(t, env.Reason)
}

func TestGateway_ErrorMapping(t *testing.T) {
	f := setupGateway(t)
	lamp := f.createProduct(t, "lamp", 100, 1)
	alice := bearer(f.token(t, "alice", false))

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		body    any
		want    int
	}{
		{"no token", http.MethodGet, "/cart/alice", nil, nil, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/cart/alice", map[string]string{"token": "garbage"}, nil, http.StatusUnauthorized},
		{"foreign cart", http.MethodGet, "/cart/bob", alice, nil, http.StatusForbidden},
		{"missing quantity", http.MethodPost, "/cart/alice/additem/" + lamp, alice, map[string]any{}, http.StatusBadRequest},
		{"zero quantity", http.MethodPost, "/cart/alice/additem/" + lamp, alice, map[string]any{"quantity": 0}, http.StatusBadRequest},
		{"unknown product", http.MethodPost, "/cart/alice/additem/nope", alice, map[string]any{"quantity": 1}, http.StatusNotFound},
		{"insufficient stock", http.MethodPost, "/cart/alice/additem/" + lamp, alice, map[string]any{"quantity": 5}, http.StatusConflict},
		{"client cannot confirm", http.MethodPost, "/order/any/confirm", alice, nil, http.StatusForbidden},
		{"unknown order", http.MethodGet, "/order/missing/details", alice, nil, http.StatusNotFound},
		{"client cannot create product", http.MethodPost, "/product/create", alice, map[string]any{"productname": "x"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := f.do(t, tt.method, tt.path, tt.headers, tt.body)
			require.Equal(t, tt.want, w.Code, w.Body.String())
			require.Equal(t, "Failed", env.Status)
		})
	}
	require.Equal(t, int64(1), f.stock(t, lamp))
}

func TestGateway_TokenHeaderAndPublicCatalog(t *testing.T) {
	f := setupGateway(t)
	lamp := f.createProduct(t, "lamp", 100, 3)

	w, env := f.do(t, http.MethodGet, "/product/list", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list storefrontv1.ListProductsResponse
	require.NoError(t, json.Unmarshal(env.Result, &list))
	require.Len(t, list.Products, 1)

	w, _ = f.do(t, http.MethodGet, "/product/"+lamp+"/details", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodGet, "/product/list?limit=-1", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// исходный заголовок token без префикса Bearer
	headers := map[string]string{"token": f.token(t, "carol", false)}
	w, _ = f.do(t, http.MethodPost, "/cart/carol/additem/"+lamp, headers, map[string]any{"quantity": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, int64(2), f.stock(t, lamp))
}

func TestGateway_IdempotencyKey(t *testing.T) {
	f := setupGateway(t)
	lamp := f.createProduct(t, "lamp", 100, 10)

	headers := bearer(f.token(t, "alice", false))
	headers["Idempotency-Key"] = "add-1"

	for i := 0; i < 3; i++ {
		w, _ := f.do(t, http.MethodPost, "/cart/alice/additem/"+lamp, headers, map[string]any{"quantity": 2})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	require.Equal(t, int64(8), f.stock(t, lamp))

	w, env := f.do(t, http.MethodPost, "/cart/alice/additem/"+lamp, headers, map[string]any{"quantity": 3})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "Failed", env.Status)
	require.Equal(t, int64(8), f.stock(t, lamp))
}

func TestGateway_RequestID(t *testing.T) {
	f := setupGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "req-42", w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.NotEmpty(t, w.Header().Get("X-Request-Id"))
}
