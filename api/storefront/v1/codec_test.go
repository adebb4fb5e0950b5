package storefrontv1

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestCodecIsRegistered(t *testing.T) {
	require.NotNil(t, encoding.GetCodec(CodecName))
}

func TestCodecPlainStruct(t *testing.T) {
	name := "Teapot"
	in := &EditProductRequest{ProductID: "p-1", Name: &name}

	data, err := Codec{}.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"product_id":"p-1","name":"Teapot"}`, string(data))

	var out EditProductRequest
	require.NoError(t, Codec{}.Unmarshal(data, &out))
	require.Equal(t, "p-1", out.ProductID)
	require.Equal(t, "Teapot", *out.Name)
	require.Nil(t, out.PriceMinor)

	require.NoError(t, Codec{}.Unmarshal(nil, &out))
	require.Error(t, Codec{}.Unmarshal([]byte("{"), &out))
}

func TestCodecProtoMessage(t *testing.T) {
	in := &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}

	data, err := Codec{}.Marshal(in)
	require.NoError(t, err)
	require.Contains(t, string(data), "SERVING")

	out := &healthpb.HealthCheckResponse{}
	require.NoError(t, Codec{}.Unmarshal(data, out))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, out.GetStatus())
}

type echoServer struct {
	UnimplementedStorefrontServer
}

func (echoServer) GetCart(_ context.Context, req *GetCartRequest) (*GetCartResponse, error) {
	return &GetCartResponse{Cart: &Cart{ClientID: req.ClientID, TotalQuantity: 3}, Found: true}, nil
}

func TestServiceDescOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterStorefrontServer(srv, echoServer{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client := NewStorefrontClient(conn)
	resp, err := client.GetCart(context.Background(), &GetCartRequest{ClientID: "c-1"})
	require.NoError(t, err)
	require.True(t, resp.Found)
	require.Equal(t, "c-1", resp.Cart.ClientID)
	require.Equal(t, int64(3), resp.Cart.TotalQuantity)

	_, err = client.Checkout(context.Background(), &CheckoutRequest{ClientID: "c-1"})
	require.Equal(t, codes.Unimplemented, status.Code(err))
}
