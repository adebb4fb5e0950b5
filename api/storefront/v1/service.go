package storefrontv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName полное имя gRPC-сервиса.
const ServiceName = "storefront.v1.Storefront"

// Полные имена методов, как их видят интерсепторы.
const (
	MethodAddItemToCart      = "/" + ServiceName + "/AddItemToCart"
	MethodRemoveItemFromCart = "/" + ServiceName + "/RemoveItemFromCart"
	MethodGetCart            = "/" + ServiceName + "/GetCart"
	MethodCheckout           = "/" + ServiceName + "/Checkout"
	MethodListOrders         = "/" + ServiceName + "/ListOrders"
	MethodGetOrderDetail     = "/" + ServiceName + "/GetOrderDetail"
	MethodUpdateOrderLine    = "/" + ServiceName + "/UpdateOrderLine"
	MethodConfirmOrder       = "/" + ServiceName + "/ConfirmOrder"
	MethodRejectOrder        = "/" + ServiceName + "/RejectOrder"
	MethodCompleteOrder      = "/" + ServiceName + "/CompleteOrder"
	MethodListProducts       = "/" + ServiceName + "/ListProducts"
	MethodGetProduct         = "/" + ServiceName + "/GetProduct"
	MethodCreateProduct      = "/" + ServiceName + "/CreateProduct"
	MethodEditProduct        = "/" + ServiceName + "/EditProduct"
	MethodRestockProduct     = "/" + ServiceName + "/RestockProduct"
	MethodDeleteProduct      = "/" + ServiceName + "/DeleteProduct"
)

// StorefrontServer серверная сторона API.
type StorefrontServer interface {
	AddItemToCart(context.Context, *AddItemToCartRequest) (*AddItemToCartResponse, error)
	RemoveItemFromCart(context.Context, *RemoveItemFromCartRequest) (*RemoveItemFromCartResponse, error)
	GetCart(context.Context, *GetCartRequest) (*GetCartResponse, error)
	Checkout(context.Context, *CheckoutRequest) (*CheckoutResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	GetOrderDetail(context.Context, *GetOrderDetailRequest) (*GetOrderDetailResponse, error)
	UpdateOrderLine(context.Context, *UpdateOrderLineRequest) (*OrderResponse, error)
	ConfirmOrder(context.Context, *OrderTransitionRequest) (*OrderResponse, error)
	RejectOrder(context.Context, *OrderTransitionRequest) (*OrderResponse, error)
	CompleteOrder(context.Context, *OrderTransitionRequest) (*OrderResponse, error)
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	GetProduct(context.Context, *GetProductRequest) (*ProductResponse, error)
	CreateProduct(context.Context, *CreateProductRequest) (*ProductResponse, error)
	EditProduct(context.Context, *EditProductRequest) (*ProductResponse, error)
	RestockProduct(context.Context, *RestockProductRequest) (*ProductResponse, error)
	DeleteProduct(context.Context, *DeleteProductRequest) (*DeleteProductResponse, error)
}

// UnimplementedStorefrontServer отвечает Unimplemented на все методы.
type UnimplementedStorefrontServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedStorefrontServer) AddItemToCart(context.Context, *AddItemToCartRequest) (*AddItemToCartResponse, error) {
	return nil, unimplemented("AddItemToCart")
}
func (UnimplementedStorefrontServer) RemoveItemFromCart(context.Context, *RemoveItemFromCartRequest) (*RemoveItemFromCartResponse, error) {
	return nil, unimplemented("RemoveItemFromCart")
}
func (UnimplementedStorefrontServer) GetCart(context.Context, *GetCartRequest) (*GetCartResponse, error) {
	return nil, unimplemented("GetCart")
}
func (UnimplementedStorefrontServer) Checkout(context.Context, *CheckoutRequest) (*CheckoutResponse, error) {
	return nil, unimplemented("Checkout")
}
func (UnimplementedStorefrontServer) ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error) {
	return nil, unimplemented("ListOrders")
}
func (UnimplementedStorefrontServer) GetOrderDetail(context.Context, *GetOrderDetailRequest) (*GetOrderDetailResponse, error) {
	return nil, unimplemented("GetOrderDetail")
}
func (UnimplementedStorefrontServer) UpdateOrderLine(context.Context, *UpdateOrderLineRequest) (*OrderResponse, error) {
	return nil, unimplemented("UpdateOrderLine")
}
func (UnimplementedStorefrontServer) ConfirmOrder(context.Context, *OrderTransitionRequest) (*OrderResponse, error) {
	return nil, unimplemented("ConfirmOrder")
}
func (UnimplementedStorefrontServer) RejectOrder(context.Context, *OrderTransitionRequest) (*OrderResponse, error) {
	return nil, unimplemented("RejectOrder")
}
func (UnimplementedStorefrontServer) CompleteOrder(context.Context, *OrderTransitionRequest) (*OrderResponse, error) {
	return nil, unimplemented("CompleteOrder")
}
func (UnimplementedStorefrontServer) ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error) {
	return nil, unimplemented("ListProducts")
}
func (UnimplementedStorefrontServer) GetProduct(context.Context, *GetProductRequest) (*ProductResponse, error) {
	return nil, unimplemented("GetProduct")
}
func (UnimplementedStorefrontServer) CreateProduct(context.Context, *CreateProductRequest) (*ProductResponse, error) {
	return nil, unimplemented("CreateProduct")
}
func (UnimplementedStorefrontServer) EditProduct(context.Context, *EditProductRequest) (*ProductResponse, error) {
	return nil, unimplemented("EditProduct")
}
func (UnimplementedStorefrontServer) RestockProduct(context.Context, *RestockProductRequest) (*ProductResponse, error) {
	return nil, unimplemented("RestockProduct")
}
func (UnimplementedStorefrontServer) DeleteProduct(context.Context, *DeleteProductRequest) (*DeleteProductResponse, error) {
	return nil, unimplemented("DeleteProduct")
}

// unary строит MethodDesc для метода с запросом Req и ответом Resp.
func unary[Req, Resp any](name string, call func(StorefrontServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StorefrontServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(StorefrontServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc дескриптор для grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorefrontServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AddItemToCart", StorefrontServer.AddItemToCart),
		unary("RemoveItemFromCart", StorefrontServer.RemoveItemFromCart),
		unary("GetCart", StorefrontServer.GetCart),
		unary("Checkout", StorefrontServer.Checkout),
		unary("ListOrders", StorefrontServer.ListOrders),
		unary("GetOrderDetail", StorefrontServer.GetOrderDetail),
		unary("UpdateOrderLine", StorefrontServer.UpdateOrderLine),
		unary("ConfirmOrder", StorefrontServer.ConfirmOrder),
		unary("RejectOrder", StorefrontServer.RejectOrder),
		unary("CompleteOrder", StorefrontServer.CompleteOrder),
		unary("ListProducts", StorefrontServer.ListProducts),
		unary("GetProduct", StorefrontServer.GetProduct),
		unary("CreateProduct", StorefrontServer.CreateProduct),
		unary("EditProduct", StorefrontServer.EditProduct),
		unary("RestockProduct", StorefrontServer.RestockProduct),
		unary("DeleteProduct", StorefrontServer.DeleteProduct),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/storefront.proto",
}

// RegisterStorefrontServer регистрирует реализацию на сервере.
func RegisterStorefrontServer(s grpc.ServiceRegistrar, srv StorefrontServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// StorefrontClient клиентская сторона API.
type StorefrontClient interface {
	AddItemToCart(ctx context.Context, in *AddItemToCartRequest, opts ...grpc.CallOption) (*AddItemToCartResponse, error)
	RemoveItemFromCart(ctx context.Context, in *RemoveItemFromCartRequest, opts ...grpc.CallOption) (*RemoveItemFromCartResponse, error)
	GetCart(ctx context.Context, in *GetCartRequest, opts ...grpc.CallOption) (*GetCartResponse, error)
	Checkout(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*CheckoutResponse, error)
	ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error)
	GetOrderDetail(ctx context.Context, in *GetOrderDetailRequest, opts ...grpc.CallOption) (*GetOrderDetailResponse, error)
	UpdateOrderLine(ctx context.Context, in *UpdateOrderLineRequest, opts ...grpc.CallOption) (*OrderResponse, error)
	ConfirmOrder(ctx context.Context, in *OrderTransitionRequest, opts ...grpc.CallOption) (*OrderResponse, error)
	RejectOrder(ctx context.Context, in *OrderTransitionRequest, opts ...grpc.CallOption) (*OrderResponse, error)
	CompleteOrder(ctx context.Context, in *OrderTransitionRequest, opts ...grpc.CallOption) (*OrderResponse, error)
	ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error)
	GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	CreateProduct(ctx context.Context, in *CreateProductRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	EditProduct(ctx context.Context, in *EditProductRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	RestockProduct(ctx context.Context, in *RestockProductRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	DeleteProduct(ctx context.Context, in *DeleteProductRequest, opts ...grpc.CallOption) (*DeleteProductResponse, error)
}

type storefrontClient struct {
	cc grpc.ClientConnInterface
}

// NewStorefrontClient создаёт клиента. Все вызовы идут с content-subtype json.
func NewStorefrontClient(cc grpc.ClientConnInterface) StorefrontClient {
	return &storefrontClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storefrontClient) AddItemToCart(ctx context.Context, in *AddItemToCartRequest, opts ...grpc.CallOption) (*AddItemToCartResponse, error) {
	return invoke[AddItemToCartResponse](ctx, c.cc, MethodAddItemToCart, in, opts)
}

func (c *storefrontClient) RemoveItemFromCart(ctx context.Context, in *RemoveItemFromCartRequest, opts ...grpc.CallOption) (*RemoveItemFromCartResponse, error) {
	return invoke[RemoveItemFromCartResponse](ctx, c.cc, MethodRemoveItemFromCart, in, opts)
}

func (c *storefrontClient) GetCart(ctx context.Context, in *GetCartRequest, opts ...grpc.CallOption) (*GetCartResponse, error) {
	return invoke[GetCartResponse](ctx, c.cc, MethodGetCart, in, opts)
}

func (c *storefrontClient) Checkout(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*CheckoutResponse, error) {
	return invoke[CheckoutResponse](ctx, c.cc, MethodCheckout, in, opts)
}

func (c *storefrontClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, MethodListOrders, in, opts)
}

func (c *storefrontClient) GetOrderDetail(ctx context.Context, in *GetOrderDetailRequest, opts ...grpc.CallOption) (*GetOrderDetailResponse, error) {
	return invoke[GetOrderDetailResponse](ctx, c.cc, MethodGetOrderDetail, in, opts)
}

func (c *storefrontClient) UpdateOrderLine(ctx context.Context, in *UpdateOrderLineRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, MethodUpdateOrderLine, in, opts)
}

func (c *storefrontClient) ConfirmOrder(ctx context.Context, in *OrderTransitionRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, MethodConfirmOrder, in, opts)
}

func (c *storefrontClient) RejectOrder(ctx context.Context, in *OrderTransitionRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, MethodRejectOrder, in, opts)
}

func (c *storefrontClient) CompleteOrder(ctx context.Context, in *OrderTransitionRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, MethodCompleteOrder, in, opts)
}

func (c *storefrontClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c.cc, MethodListProducts, in, opts)
}

func (c *storefrontClient) GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, MethodGetProduct, in, opts)
}

func (c *storefrontClient) CreateProduct(ctx context.Context, in *CreateProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, MethodCreateProduct, in, opts)
}

func (c *storefrontClient) EditProduct(ctx context.Context, in *EditProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, MethodEditProduct, in, opts)
}

func (c *storefrontClient) RestockProduct(ctx context.Context, in *RestockProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, MethodRestockProduct, in, opts)
}

func (c *storefrontClient) DeleteProduct(ctx context.Context, in *DeleteProductRequest, opts ...grpc.CallOption) (*DeleteProductResponse, error) {
	return invoke[DeleteProductResponse](ctx, c.cc, MethodDeleteProduct, in, opts)
}
