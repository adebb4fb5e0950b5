// Package httpsvc REST-шлюз с маршрутами исходной витрины. Каждый маршрут
// вызывает тот же storefrontv1.StorefrontServer, что обслуживает gRPC,
// поэтому правила доступа, idempotency и коды ошибок совпадают.
package httpsvc

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/metadata"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	headerAuthorization  = "Authorization"
	headerToken          = "token"
	headerIdempotencyKey = "Idempotency-Key"
	headerRequestID      = "X-Request-Id"

	idempotencyMetadataKey = "idempotency-key"

	statusSuccess = "Success"
	statusFailed  = "Failed"
)

// Gateway gin-обработчики поверх API витрины.
type Gateway struct {
	engine   *gin.Engine
	api      storefrontv1.StorefrontServer
	resolver auth.IdentityResolver
	metrics  *metrics.HTTPMetrics
	logger   *log.Entry
}

// Option настраивает Gateway.
type Option func(*Gateway)

func WithLogger(logger *log.Entry) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// NewGateway собирает gin.Engine со всеми маршрутами.
func NewGateway(api storefrontv1.StorefrontServer, resolver auth.IdentityResolver, opts ...Option) *Gateway {
	g := &Gateway{
		api:      api,
		resolver: resolver,
		logger:   log.New().WithField("component", "http-gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}

	r := gin.New()
	r.Use(gin.Recovery(), g.observe(), g.identify())
	g.engine = r
	g.registerRoutes()
	return g
}

// Handler возвращает http.Handler для http.Server.
func (g *Gateway) Handler() http.Handler { return g.engine }

func (g *Gateway) registerRoutes() {
	r := g.engine

	r.GET("/livez", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	product := r.Group("/product")
	{
		product.GET("/list", g.listProducts)
		product.GET("/:id/details", g.productDetails)
		product.POST("/create", g.createProduct)
		product.POST("/:id/edit", g.editProduct)
		product.POST("/:id/restock", g.restockProduct)
		product.DELETE("/:id/delete", g.deleteProduct)
	}

	cart := r.Group("/cart")
	{
		cart.GET("/:userid", g.getCart)
		cart.POST("/:userid/additem/:productid", g.addItem)
		cart.DELETE("/:userid/removeitem/:productid", g.removeItem)
		cart.GET("/:userid/checkout", g.checkout)
		cart.POST("/:userid/checkout", g.checkout)
	}

	order := r.Group("/order")
	{
		order.GET("/list", g.listOrders)
		order.GET("/:orderid/details", g.orderDetails)
		order.POST("/:orderid/update", g.updateOrder)
		order.POST("/:orderid/confirm", g.confirmOrder)
		order.POST("/:orderid/reject", g.rejectOrder)
		order.POST("/:orderid/completed", g.completeOrder)
	}
}

// callContext переносит idempotency-key из заголовка в incoming metadata,
// где его ищет API.
func callContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey)); key != "" {
		ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(idempotencyMetadataKey, key))
	}
	return ctx
}

func (g *Gateway) reply(c *gin.Context, resp any, err error) {
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "result": resp})
}

func badInput(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"status": statusFailed, "reason": reason})
}

// Товары.

type productInput struct {
	Name        string `json:"productname"`
	Description string `json:"description"`
	ImageURL    string `json:"imageURL"`
	Price       int64  `json:"price"`
	InStock     int64  `json:"instock"`
}

type productPatchInput struct {
	Name        *string `json:"productname"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageURL"`
	Price       *int64  `json:"price"`
}

type deltaInput struct {
	Delta *int64 `json:"delta"`
}

func (g *Gateway) listProducts(c *gin.Context) {
	var limit int32
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || v < 0 {
			badInput(c, "Invalid limit.")
			return
		}
		limit = int32(v)
	}
	resp, err := g.api.ListProducts(callContext(c), &storefrontv1.ListProductsRequest{Limit: limit})
	g.reply(c, resp, err)
}

func (g *Gateway) productDetails(c *gin.Context) {
	resp, err := g.api.GetProduct(callContext(c), &storefrontv1.GetProductRequest{ProductID: c.Param("id")})
	g.reply(c, resp, err)
}

func (g *Gateway) createProduct(c *gin.Context) {
	var in productInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badInput(c, "Inserted data invalid.")
		return
	}
	resp, err := g.api.CreateProduct(callContext(c), &storefrontv1.CreateProductRequest{
		Name:        in.Name,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		PriceMinor:  in.Price,
		Stock:       in.InStock,
	})
	g.reply(c, resp, err)
}

func (g *Gateway) editProduct(c *gin.Context) {
	var in productPatchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badInput(c, "Inserted data invalid.")
		return
	}
	resp, err := g.api.EditProduct(callContext(c), &storefrontv1.EditProductRequest{
		ProductID:   c.Param("id"),
		Name:        in.Name,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		PriceMinor:  in.Price,
	})
	g.reply(c, resp, err)
}

func (g *Gateway) restockProduct(c *gin.Context) {
	var in deltaInput
	if err := c.ShouldBindJSON(&in); err != nil || in.Delta == nil {
		badInput(c, "Inserted data invalid.")
		return
	}
	resp, err := g.api.RestockProduct(callContext(c), &storefrontv1.RestockProductRequest{
		ProductID: c.Param("id"),
		Delta:     *in.Delta,
	})
	g.reply(c, resp, err)
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	resp, err := g.api.DeleteProduct(callContext(c), &storefrontv1.DeleteProductRequest{ProductID: c.Param("id")})
	g.reply(c, resp, err)
}

// Корзина.

type quantityInput struct {
	Quantity *int64 `json:"quantity"`
}

func bindQuantity(c *gin.Context) (int64, bool) {
	var in quantityInput
	if err := c.ShouldBindJSON(&in); err != nil || in.Quantity == nil {
		badInput(c, "Inserted data invalid.")
		return 0, false
	}
	return *in.Quantity, true
}

func (g *Gateway) getCart(c *gin.Context) {
	resp, err := g.api.GetCart(callContext(c), &storefrontv1.GetCartRequest{ClientID: c.Param("userid")})
	g.reply(c, resp, err)
}

func (g *Gateway) addItem(c *gin.Context) {
	qty, ok := bindQuantity(c)
	if !ok {
		return
	}
	resp, err := g.api.AddItemToCart(callContext(c), &storefrontv1.AddItemToCartRequest{
		ClientID:  c.Param("userid"),
		ProductID: c.Param("productid"),
		Quantity:  qty,
	})
	g.reply(c, resp, err)
}

func (g *Gateway) removeItem(c *gin.Context) {
	qty, ok := bindQuantity(c)
	if !ok {
		return
	}
	resp, err := g.api.RemoveItemFromCart(callContext(c), &storefrontv1.RemoveItemFromCartRequest{
		ClientID:  c.Param("userid"),
		ProductID: c.Param("productid"),
		Quantity:  qty,
	})
	g.reply(c, resp, err)
}

func (g *Gateway) checkout(c *gin.Context) {
	resp, err := g.api.Checkout(callContext(c), &storefrontv1.CheckoutRequest{ClientID: c.Param("userid")})
	g.reply(c, resp, err)
}

// Заказы.

type orderUpdateInput struct {
	ProductID string `json:"productid"`
	Quantity  *int64 `json:"quantity"`
}

func (g *Gateway) listOrders(c *gin.Context) {
	resp, err := g.api.ListOrders(callContext(c), &storefrontv1.ListOrdersRequest{ClientID: c.Query("client_id")})
	g.reply(c, resp, err)
}

func (g *Gateway) orderDetails(c *gin.Context) {
	resp, err := g.api.GetOrderDetail(callContext(c), &storefrontv1.GetOrderDetailRequest{OrderID: c.Param("orderid")})
	g.reply(c, resp, err)
}

func (g *Gateway) updateOrder(c *gin.Context) {
	var in orderUpdateInput
	if err := c.ShouldBindJSON(&in); err != nil || in.Quantity == nil {
		badInput(c, "Invalid data.")
		return
	}
	resp, err := g.api.UpdateOrderLine(callContext(c), &storefrontv1.UpdateOrderLineRequest{
		OrderID:   c.Param("orderid"),
		ProductID: in.ProductID,
		Delta:     *in.Quantity,
	})
	g.reply(c, resp, err)
}

func (g *Gateway) confirmOrder(c *gin.Context) {
	resp, err := g.api.ConfirmOrder(callContext(c), &storefrontv1.OrderTransitionRequest{OrderID: c.Param("orderid")})
	g.reply(c, resp, err)
}

func (g *Gateway) rejectOrder(c *gin.Context) {
	resp, err := g.api.RejectOrder(callContext(c), &storefrontv1.OrderTransitionRequest{OrderID: c.Param("orderid")})
	g.reply(c, resp, err)
}

func (g *Gateway) completeOrder(c *gin.Context) {
	resp, err := g.api.CompleteOrder(callContext(c), &storefrontv1.OrderTransitionRequest{OrderID: c.Param("orderid")})
	g.reply(c, resp, err)
}
