// Package grpcsvc реализует gRPC API витрины поверх сервисов корзины, заказов и каталога.
package grpcsvc

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

// Server реализует storefrontv1.StorefrontServer.
type Server struct {
	storefrontv1.UnimplementedStorefrontServer

	carts          *cart.Manager
	orders         *order.Machine
	catalog        *catalog.Service
	idempotency    domain.IdempotencyRepository
	idempotencyTTL time.Duration
	logger         *log.Entry
}

// Option настраивает Server.
type Option func(*Server)

// WithIdempotency включает обработку idempotency-key.
func WithIdempotency(repo domain.IdempotencyRepository, ttl time.Duration) Option {
	return func(s *Server) {
		s.idempotency = repo
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer конструирует сервис с зависимостями.
func NewServer(carts *cart.Manager, orders *order.Machine, products *catalog.Service, opts ...Option) *Server {
	s := &Server{
		carts:          carts,
		orders:         orders,
		catalog:        products,
		idempotencyTTL: defaultIdempotencyTTL,
		logger:         log.New().WithField("component", "grpc-api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItemToCart резервирует товар и кладёт его в корзину.
func (s *Server) AddItemToCart(ctx context.Context, req *storefrontv1.AddItemToCartRequest) (*storefrontv1.AddItemToCartResponse, error) {
	clientID, err := auth.RequireClient(ctx, req.ClientID)
	if err != nil {
		return nil, s.toStatus("AddItemToCart", err)
	}

	return withIdempotency(s, ctx, storefrontv1.MethodAddItemToCart, req,
		func(ctx context.Context) (*storefrontv1.AddItemToCartResponse, error) {
			c, err := s.carts.AddItem(ctx, clientID, req.ProductID, req.Quantity)
			if err != nil {
				return nil, s.toStatus("AddItemToCart", err)
			}
			return &storefrontv1.AddItemToCartResponse{Cart: s.cartMessage(ctx, c)}, nil
		})
}

// RemoveItemFromCart убирает товар из корзины и возвращает его на склад.
func (s *Server) RemoveItemFromCart(ctx context.Context, req *storefrontv1.RemoveItemFromCartRequest) (*storefrontv1.RemoveItemFromCartResponse, error) {
	clientID, err := auth.RequireClient(ctx, req.ClientID)
	if err != nil {
		return nil, s.toStatus("RemoveItemFromCart", err)
	}

	return withIdempotency(s, ctx, storefrontv1.MethodRemoveItemFromCart, req,
		func(ctx context.Context) (*storefrontv1.RemoveItemFromCartResponse, error) {
			c, exists, err := s.carts.RemoveItem(ctx, clientID, req.ProductID, req.Quantity)
			if err != nil {
				return nil, s.toStatus("RemoveItemFromCart", err)
			}
			resp := &storefrontv1.RemoveItemFromCartResponse{Exists: exists}
			if exists {
				resp.Cart = s.cartMessage(ctx, c)
			}
			return resp, nil
		})
}

func (s *Server) GetCart(ctx context.Context, req *storefrontv1.GetCartRequest) (*storefrontv1.GetCartResponse, error) {
	clientID, err := auth.RequireClient(ctx, req.ClientID)
	if err != nil {
		return nil, s.toStatus("GetCart", err)
	}

	view, found, err := s.carts.GetCart(ctx, clientID)
	if err != nil {
		return nil, s.toStatus("GetCart", err)
	}
	return &storefrontv1.GetCartResponse{Cart: toCartMessage(view), Found: found}, nil
}

// Checkout превращает корзину в заказ.
func (s *Server) Checkout(ctx context.Context, req *storefrontv1.CheckoutRequest) (*storefrontv1.CheckoutResponse, error) {
	clientID, err := auth.RequireClient(ctx, req.ClientID)
	if err != nil {
		return nil, s.toStatus("Checkout", err)
	}

	return withIdempotency(s, ctx, storefrontv1.MethodCheckout, req,
		func(ctx context.Context) (*storefrontv1.CheckoutResponse, error) {
			o, err := s.carts.Checkout(ctx, clientID)
			if err != nil {
				return nil, s.toStatus("Checkout", err)
			}
			return &storefrontv1.CheckoutResponse{Order: s.orderMessage(ctx, o)}, nil
		})
}

// ListOrders отдаёт администратору все заказы (или заказы клиента), остальным только свои.
func (s *Server) ListOrders(ctx context.Context, req *storefrontv1.ListOrdersRequest) (*storefrontv1.ListOrdersResponse, error) {
	identity, err := auth.Require(ctx)
	if err != nil {
		return nil, s.toStatus("ListOrders", err)
	}

	var views []domain.OrderView
	switch {
	case identity.IsAdmin && req.ClientID == "":
		views, err = s.orders.ListAll(ctx)
	default:
		clientID, accessErr := auth.RequireClient(ctx, req.ClientID)
		if accessErr != nil {
			return nil, s.toStatus("ListOrders", accessErr)
		}
		views, err = s.orders.ListForClient(ctx, clientID)
	}
	if err != nil {
		return nil, s.toStatus("ListOrders", err)
	}

	result := make([]*storefrontv1.Order, 0, len(views))
	for _, v := range views {
		result = append(result, toOrderMessage(v))
	}
	return &storefrontv1.ListOrdersResponse{Orders: result}, nil
}

func (s *Server) GetOrderDetail(ctx context.Context, req *storefrontv1.GetOrderDetailRequest) (*storefrontv1.GetOrderDetailResponse, error) {
	identity, err := auth.Require(ctx)
	if err != nil {
		return nil, s.toStatus("GetOrderDetail", err)
	}

	detail, err := s.orders.Detail(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus("GetOrderDetail", err)
	}
	if !identity.CanAccessClient(detail.ClientID) {
		// чужой заказ выглядит как несуществующий
		return nil, s.toStatus("GetOrderDetail", domain.ErrOrderNotFound)
	}

	timeline := make([]*storefrontv1.TimelineEvent, 0, len(detail.Timeline))
	for _, e := range detail.Timeline {
		timeline = append(timeline, &storefrontv1.TimelineEvent{Type: e.Type, Reason: e.Reason, UnixTime: e.Occurred.Unix()})
	}
	return &storefrontv1.GetOrderDetailResponse{Order: toOrderMessage(detail.OrderView), Timeline: timeline}, nil
}

// UpdateOrderLine меняет количество товара в открытом или подтверждённом заказе.
func (s *Server) UpdateOrderLine(ctx context.Context, req *storefrontv1.UpdateOrderLineRequest) (*storefrontv1.OrderResponse, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, s.toStatus("UpdateOrderLine", err)
	}

	return withIdempotency(s, ctx, storefrontv1.MethodUpdateOrderLine, req,
		func(ctx context.Context) (*storefrontv1.OrderResponse, error) {
			o, err := s.orders.AdjustLine(ctx, req.OrderID, req.ProductID, req.Delta)
			if err != nil {
				return nil, s.toStatus("UpdateOrderLine", err)
			}
			return &storefrontv1.OrderResponse{Order: s.orderMessage(ctx, o)}, nil
		})
}

func (s *Server) ConfirmOrder(ctx context.Context, req *storefrontv1.OrderTransitionRequest) (*storefrontv1.OrderResponse, error) {
	return s.transition(ctx, "ConfirmOrder", req, s.orders.Confirm)
}

func (s *Server) RejectOrder(ctx context.Context, req *storefrontv1.OrderTransitionRequest) (*storefrontv1.OrderResponse, error) {
	return s.transition(ctx, "RejectOrder", req, s.orders.Reject)
}

func (s *Server) CompleteOrder(ctx context.Context, req *storefrontv1.OrderTransitionRequest) (*storefrontv1.OrderResponse, error) {
	return s.transition(ctx, "CompleteOrder", req, s.orders.Complete)
}

func (s *Server) transition(
	ctx context.Context,
	op string,
	req *storefrontv1.OrderTransitionRequest,
	apply func(context.Context, string) (domain.Order, error),
) (*storefrontv1.OrderResponse, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, s.toStatus(op, err)
	}
	o, err := apply(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	return &storefrontv1.OrderResponse{Order: s.orderMessage(ctx, o)}, nil
}

func (s *Server) ListProducts(ctx context.Context, req *storefrontv1.ListProductsRequest) (*storefrontv1.ListProductsResponse, error) {
	products, err := s.catalog.List(ctx, int(req.Limit))
	if err != nil {
		return nil, s.toStatus("ListProducts", err)
	}
	result := make([]*storefrontv1.Product, 0, len(products))
	for _, p := range products {
		result = append(result, toProductMessage(p))
	}
	return &storefrontv1.ListProductsResponse{Products: result}, nil
}

func (s *Server) GetProduct(ctx context.Context, req *storefrontv1.GetProductRequest) (*storefrontv1.ProductResponse, error) {
	p, err := s.catalog.Get(ctx, req.ProductID)
	if err != nil {
		return nil, s.toStatus("GetProduct", err)
	}
	return &storefrontv1.ProductResponse{Product: toProductMessage(p)}, nil
}

func (s *Server) CreateProduct(ctx context.Context, req *storefrontv1.CreateProductRequest) (*storefrontv1.ProductResponse, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, s.toStatus("CreateProduct", err)
	}
	p, err := s.catalog.Create(ctx, catalog.ProductDraft{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		PriceMinor:  req.PriceMinor,
		Stock:       req.Stock,
	})
	if err != nil {
		return nil, s.toStatus("CreateProduct", err)
	}
	return &storefrontv1.ProductResponse{Product: toProductMessage(p)}, nil
}

func (s *Server) EditProduct(ctx context.Context, req *storefrontv1.EditProductRequest) (*storefrontv1.ProductResponse, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, s.toStatus("EditProduct", err)
	}
	p, err := s.catalog.Edit(ctx, req.ProductID, catalog.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		PriceMinor:  req.PriceMinor,
	})
	if err != nil {
		return nil, s.toStatus("EditProduct", err)
	}
	return &storefrontv1.ProductResponse{Product: toProductMessage(p)}, nil
}

func (s *Server) RestockProduct(ctx context.Context, req *storefrontv1.RestockProductRequest) (*storefrontv1.ProductResponse, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, s.toStatus("RestockProduct", err)
	}
	p, err := s.catalog.Restock(ctx, req.ProductID, req.Delta)
	if err != nil {
		return nil, s.toStatus("RestockProduct", err)
	}
	return &storefrontv1.ProductResponse{Product: toProductMessage(p)}, nil
}

func (s *Server) DeleteProduct(ctx context.Context, req *storefrontv1.DeleteProductRequest) (*storefrontv1.DeleteProductResponse, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, s.toStatus("DeleteProduct", err)
	}
	if err := s.catalog.Delete(ctx, req.ProductID); err != nil {
		return nil, s.toStatus("DeleteProduct", err)
	}
	return &storefrontv1.DeleteProductResponse{}, nil
}

// resolve дополняет позиции данными каталога. Запись уже выполнена, поэтому
// ошибка каталога не должна превращать успешный ответ в ошибку.
func (s *Server) resolve(ctx context.Context, lines []domain.Line) []domain.LineView {
	views, err := domain.ResolveLines(ctx, s.catalog, lines)
	if err == nil {
		return views
	}
	s.logger.WithError(err).Warn("catalog lookup failed, responding without product details")
	views = make([]domain.LineView, 0, len(lines))
	for _, l := range lines {
		views = append(views, domain.LineView{ProductID: l.ProductID, Quantity: l.Quantity, UnitPriceMinor: l.UnitPriceMinor})
	}
	return views
}

func (s *Server) cartMessage(ctx context.Context, c domain.Cart) *storefrontv1.Cart {
	return toCartMessage(domain.NewCartView(c, s.resolve(ctx, c.Lines())))
}

func (s *Server) orderMessage(ctx context.Context, o domain.Order) *storefrontv1.Order {
	return toOrderMessage(domain.NewOrderView(o, s.resolve(ctx, o.Lines())))
}

func toLines(views []domain.LineView) []storefrontv1.Line {
	lines := make([]storefrontv1.Line, 0, len(views))
	for _, v := range views {
		lines = append(lines, storefrontv1.Line{
			ProductID:      v.ProductID,
			Name:           v.Name,
			ImageURL:       v.ImageURL,
			Quantity:       v.Quantity,
			UnitPriceMinor: v.UnitPriceMinor,
			Available:      v.Available,
		})
	}
	return lines
}

func toCartMessage(v domain.CartView) *storefrontv1.Cart {
	return &storefrontv1.Cart{
		ClientID:       v.ClientID,
		Lines:          toLines(v.Lines),
		TotalQuantity:  v.TotalQuantity,
		TotalCostMinor: v.TotalCostMinor,
		Version:        v.Version,
	}
}

func toOrderMessage(v domain.OrderView) *storefrontv1.Order {
	return &storefrontv1.Order{
		ID:             v.ID,
		Number:         v.Number,
		ClientID:       v.ClientID,
		State:          string(v.State),
		Confirmed:      v.Confirmed,
		Completed:      v.Completed,
		Date:           v.Date,
		Lines:          toLines(v.Lines),
		TotalQuantity:  v.TotalQuantity,
		TotalCostMinor: v.TotalCostMinor,
		Version:        v.Version,
	}
}

func toProductMessage(p domain.Product) *storefrontv1.Product {
	return &storefrontv1.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		PriceMinor:  p.PriceMinor,
		Stock:       p.Stock,
		Version:     p.Version,
	}
}

var _ storefrontv1.StorefrontServer = (*Server)(nil)
