package grpcsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	idempotencyKeyHeader  = "idempotency-key"
	defaultIdempotencyTTL = 24 * time.Hour
)

type idempotencyErrorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// withIdempotency выполняет handler не более одного раза на idempotency-key.
// Без ключа в metadata запрос выполняется как обычно.
func withIdempotency[T any](
	s *Server,
	ctx context.Context,
	method string,
	req any,
	handler func(context.Context) (*T, error),
) (*T, error) {
	if s.idempotency == nil {
		return handler(ctx)
	}
	key := firstMetadata(ctx, idempotencyKeyHeader)
	if key == "" {
		return handler(ctx)
	}

	reqHash, err := buildRequestHash(ctx, method, req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency request hash")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, err := s.idempotency.CreateProcessing(ctx, key, reqHash, time.Now().UTC().Add(s.idempotencyTTL))
	if err != nil {
		return replayIdempotency[T](s, err, record)
	}

	resp, runErr := handler(ctx)
	// ответ сохраняем даже если клиент уже ушёл
	storeCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		s.cacheIdempotencyFailure(storeCtx, key, runErr)
		return nil, runErr
	}
	if cacheErr := s.cacheIdempotencySuccess(storeCtx, key, resp); cacheErr != nil {
		s.logger.WithError(cacheErr).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
	}
	return resp, nil
}

func replayIdempotency[T any](s *Server, createErr error, record domain.IdempotencyRecord) (*T, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return nil, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone:
			if len(record.ResponseBody) == 0 {
				return nil, status.Error(codes.Internal, "idempotency cache is empty")
			}
			resp := new(T)
			if err := json.Unmarshal(record.ResponseBody, resp); err != nil {
				s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached idempotency response")
				return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
			}
			return resp, nil
		case domain.IdempotencyStatusProcessing:
			return nil, status.Error(codes.Aborted, "request with the same idempotency key is already processing")
		case domain.IdempotencyStatusFailed:
			return nil, decodeIdempotencyFailure(record)
		default:
			return nil, status.Error(codes.Internal, "unknown idempotency record status")
		}
	case domain.IsStoreUnavailable(createErr):
		s.logger.WithError(createErr).Warn("idempotency store unavailable")
		return nil, status.Error(codes.Unavailable, "idempotency store unavailable")
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}
}

func (s *Server) cacheIdempotencySuccess(ctx context.Context, key string, resp any) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.idempotency.MarkDone(ctx, key, data, int(codes.OK))
}

// retryableCode коды ошибок, после которых запрос считается неприменённым:
// ключ освобождается, и повтор с тем же ключом выполняется заново.
func retryableCode(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.Aborted, codes.Internal, codes.DeadlineExceeded, codes.Canceled:
		return true
	default:
		return false
	}
}

func (s *Server) cacheIdempotencyFailure(ctx context.Context, key string, runErr error) {
	st := status.Convert(runErr)
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}

	if retryableCode(code) {
		if err := s.idempotency.Release(ctx, key); err != nil {
			s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to release idempotency key")
		}
		return
	}

	payload, err := json.Marshal(idempotencyErrorPayload{
		Code:    int32(code), //nolint:gosec // codes.Code is a bounded enum value.
		Message: st.Message(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
		payload = nil
	}

	if err := s.idempotency.MarkFailed(ctx, key, payload, int(code)); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

func decodeIdempotencyFailure(record domain.IdempotencyRecord) error {
	const fallback = "previous request with the same idempotency key failed"

	if len(record.ResponseBody) > 0 {
		var payload idempotencyErrorPayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil {
			if code, ok := grpcCode(int64(payload.Code)); ok {
				if payload.Message == "" {
					payload.Message = fallback
				}
				return status.Error(code, payload.Message)
			}
		}
	}
	if code, ok := grpcCode(int64(record.HTTPStatus)); ok {
		return status.Error(code, fallback)
	}
	return status.Error(codes.Internal, fallback)
}

// grpcCode принимает только ненулевые коды из известного диапазона.
func grpcCode(value int64) (codes.Code, bool) {
	if value <= int64(codes.OK) || value > int64(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true
}

// buildRequestHash учитывает метод, вызывающего клиента и тело запроса.
func buildRequestHash(ctx context.Context, method string, req any) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request is nil")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var caller string
	if identity, ok := auth.FromContext(ctx); ok {
		caller = identity.ClientID
	}

	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{':'})
	h.Write([]byte(caller))
	h.Write([]byte{':'})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
