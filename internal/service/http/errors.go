package httpsvc

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// statusCode переводит gRPC-код ответа API в HTTP-статус.
// AlreadyExists при переданном idempotency-key означает другой payload под тем же ключом.
func statusCode(code codes.Code, idempotent bool) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition, codes.Aborted:
		return http.StatusConflict
	case codes.AlreadyExists:
		if idempotent {
			return http.StatusUnprocessableEntity
		}
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) fail(c *gin.Context, err error) {
	st := status.Convert(err)
	idempotent := c.GetHeader(headerIdempotencyKey) != ""
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusCode(st.Code(), idempotent), gin.H{
		"status": statusFailed,
		"reason": st.Message(),
	})
}
