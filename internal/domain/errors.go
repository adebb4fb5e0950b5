package domain

import (
	"errors"

	"github.com/vladislavdragonenkov/storefront/internal/ledger"
)

var (
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrCartNotFound возвращается, если у клиента нет корзины (или она пуста при оформлении).
	ErrCartNotFound = errors.New("cart not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrLineNotFound возвращается, если товара нет среди позиций корзины или заказа.
	ErrLineNotFound = errors.New("line not found")

	// Ошибка при некорректном количестве товара в запросе.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// Ошибка валидации входных данных.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientStock возвращается, если на складе меньше товара, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInsufficientQuantity возвращается при удалении большего количества, чем лежит в корзине или заказе.
	ErrInsufficientQuantity = ledger.ErrInsufficientQuantity
	// ErrInvalidOperation возвращается при уменьшении отсутствующей позиции ledger.
	ErrInvalidOperation = ledger.ErrInvalidOperation
	// ErrMalformedLedger возвращается, если сохранённые позиции не удалось разобрать.
	ErrMalformedLedger = ledger.ErrMalformed
	// ErrInvalidTransition возвращается при недопустимом переходе статуса заказа.
	ErrInvalidTransition = errors.New("invalid order state transition")
	// ErrProductExists возвращается, если товар с таким названием уже есть.
	ErrProductExists = errors.New("product already exists")
	// ErrAlreadyExists возвращается при попытке создать уже существующую запись.
	ErrAlreadyExists = errors.New("already exists")

	// ErrVersionConflict сигнализирует о конфликте версий при сохранении (optimistic locking).
	ErrVersionConflict = errors.New("version conflict")
	// ErrConcurrentUpdate возвращается, когда попытки CAS исчерпаны.
	ErrConcurrentUpdate = errors.New("concurrent update conflict")
	// ErrStoreUnavailable временная недоступность хранилища. Запись с такой ошибкой считается неприменённой.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnauthenticated возвращается при отсутствии или невалидности токена.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrPermissionDenied возвращается, если у клиента нет прав на операцию.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrOutboxPublish ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyHashMismatch ключ уже использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyAlreadyExists ключ уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	ErrIdempotencyKeyNotFound      = errors.New("idempotency key not found")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsStoreUnavailable проверяет временную недоступность хранилища.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsIdempotencyConflict сообщает, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// Kind категория ошибки, по которой транспорт выбирает код ответа.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidArgument
	KindBusinessRule
	KindInvalidTransition
	KindConflict
	KindAlreadyExists
	KindUnavailable
	KindUnauthenticated
	KindPermissionDenied
)

// String нужен для логов.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindBusinessRule:
		return "business_rule"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	case KindAlreadyExists:
		return "already_exists"
	case KindUnavailable:
		return "unavailable"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindPermissionDenied:
		return "permission_denied"
	default:
		return "internal"
	}
}

// KindOf классифицирует ошибку. Неизвестные ошибки считаются внутренними.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrCartNotFound),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrLineNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrInvalidOperation),
		errors.Is(err, ErrMalformedLedger):
		return KindInvalidArgument
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInsufficientQuantity):
		return KindBusinessRule
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrConcurrentUpdate),
		errors.Is(err, ErrVersionConflict):
		return KindConflict
	case errors.Is(err, ErrProductExists),
		errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrStoreUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	default:
		return KindInternal
	}
}
