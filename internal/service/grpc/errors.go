package grpcsvc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CodeOf переводит категорию доменной ошибки в gRPC-код.
func CodeOf(kind domain.Kind) codes.Code {
	switch kind {
	case domain.KindNotFound:
		return codes.NotFound
	case domain.KindInvalidArgument:
		return codes.InvalidArgument
	case domain.KindBusinessRule, domain.KindInvalidTransition:
		return codes.FailedPrecondition
	case domain.KindConflict:
		return codes.Aborted
	case domain.KindAlreadyExists:
		return codes.AlreadyExists
	case domain.KindUnavailable:
		return codes.Unavailable
	case domain.KindUnauthenticated:
		return codes.Unauthenticated
	case domain.KindPermissionDenied:
		return codes.PermissionDenied
	default:
		return codes.Internal
	}
}

// toStatus превращает ошибку сервиса в gRPC-статус. Внутренние ошибки
// не раскрывают детали клиенту.
func (s *Server) toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	kind := domain.KindOf(err)
	code := CodeOf(kind)
	entry := s.logger.WithError(err).WithField("operation", op).WithField("kind", kind.String())
	if code == codes.Internal || code == codes.Unavailable {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}
