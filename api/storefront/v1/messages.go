// Package storefrontv1 описывает gRPC API витрины: сообщения, дескриптор
// сервиса и JSON-кодек, которым они передаются.
package storefrontv1

// Line позиция корзины или заказа.
type Line struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	Quantity       int64  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Available      bool   `json:"available"`
}

type Cart struct {
	ClientID       string `json:"client_id"`
	Lines          []Line `json:"lines"`
	TotalQuantity  int64  `json:"total_quantity"`
	TotalCostMinor int64  `json:"total_cost_minor"`
	Version        int64  `json:"version"`
}

type Order struct {
	ID             string `json:"id"`
	Number         string `json:"number"`
	ClientID       string `json:"client_id"`
	State          string `json:"state"`
	Confirmed      bool   `json:"confirmed"`
	Completed      bool   `json:"completed"`
	Date           string `json:"date"`
	Lines          []Line `json:"lines"`
	TotalQuantity  int64  `json:"total_quantity"`
	TotalCostMinor int64  `json:"total_cost_minor"`
	Version        int64  `json:"version"`
}

type TimelineEvent struct {
	Type     string `json:"type"`
	Reason   string `json:"reason,omitempty"`
	UnixTime int64  `json:"unix_time"`
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	PriceMinor  int64  `json:"price_minor"`
	Stock       int64  `json:"stock"`
	Version     int64  `json:"version"`
}

// Корзина.

type AddItemToCartRequest struct {
	ClientID  string `json:"client_id"`
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type AddItemToCartResponse struct {
	Cart *Cart `json:"cart"`
}

type RemoveItemFromCartRequest struct {
	ClientID  string `json:"client_id"`
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// RemoveItemFromCartResponse: Exists=false, если корзина опустела и удалена.
type RemoveItemFromCartResponse struct {
	Cart   *Cart `json:"cart,omitempty"`
	Exists bool  `json:"exists"`
}

type GetCartRequest struct {
	ClientID string `json:"client_id"`
}

type GetCartResponse struct {
	Cart  *Cart `json:"cart"`
	Found bool  `json:"found"`
}

type CheckoutRequest struct {
	ClientID string `json:"client_id"`
}

type CheckoutResponse struct {
	Order *Order `json:"order"`
}

// Заказы.

// ListOrdersRequest: пустой ClientID у администратора означает все заказы.
type ListOrdersRequest struct {
	ClientID string `json:"client_id,omitempty"`
}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

type GetOrderDetailRequest struct {
	OrderID string `json:"order_id"`
}

type GetOrderDetailResponse struct {
	Order    *Order           `json:"order"`
	Timeline []*TimelineEvent `json:"timeline"`
}

type UpdateOrderLineRequest struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Delta     int64  `json:"delta"`
}

type OrderTransitionRequest struct {
	OrderID string `json:"order_id"`
}

type OrderResponse struct {
	Order *Order `json:"order"`
}

// Каталог.

type ListProductsRequest struct {
	Limit int32 `json:"limit,omitempty"`
}

type ListProductsResponse struct {
	Products []*Product `json:"products"`
}

type GetProductRequest struct {
	ProductID string `json:"product_id"`
}

type CreateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	PriceMinor  int64  `json:"price_minor"`
	Stock       int64  `json:"stock"`
}

// EditProductRequest: nil-поля не меняются.
type EditProductRequest struct {
	ProductID   string  `json:"product_id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	PriceMinor  *int64  `json:"price_minor,omitempty"`
}

type RestockProductRequest struct {
	ProductID string `json:"product_id"`
	Delta     int64  `json:"delta"`
}

type DeleteProductRequest struct {
	ProductID string `json:"product_id"`
}

type DeleteProductResponse struct{}

type ProductResponse struct {
	Product *Product `json:"product"`
}
