// Package consistency содержит общие правила согласованности записей:
// повтор CAS-записей при конфликте версий, повтор чтений при временной
// недоступности хранилища и выполнение компенсирующих действий.
package consistency

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 10 * time.Millisecond
	defaultMaxDelay    = 200 * time.Millisecond

	compensationTimeout = 5 * time.Second
)

// Policy задаёт число попыток и экспоненциальную задержку между ними.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy пять попыток, задержка от 10ms с удвоением до 200ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Backoff задержка перед попыткой attempt+1 (attempt начинается с 1).
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 || p.BaseDelay == 0 {
		return 0
	}
	shift := attempt - 1
	if shift > 16 {
		shift = 16
	}
	delay := p.BaseDelay << shift
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// RetryOnConflict вызывает fn, пока она возвращает конфликт версий, не больше
// MaxAttempts раз. Исчерпание попыток даёт domain.ErrConcurrentUpdate.
// Возвращает число выполненных попыток.
func RetryOnConflict(ctx context.Context, policy Policy, fn func(attempt int) error) (int, error) {
	policy = policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if !domain.IsVersionConflict(err) {
			return attempt, err
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}
		if err := sleep(ctx, policy.Backoff(attempt)); err != nil {
			return attempt, err
		}
	}
	return policy.MaxAttempts, fmt.Errorf("%w: %d attempts: %w", domain.ErrConcurrentUpdate, policy.MaxAttempts, lastErr)
}

// Read повторяет чтение только при domain.ErrStoreUnavailable.
// Остальные ошибки возвращаются сразу.
func Read[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.normalized()

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		if !domain.IsStoreUnavailable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}
		if err := sleep(ctx, policy.Backoff(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Compensator выполняет обратные складские операции после неудачной записи агрегата.
type Compensator struct {
	logger  *log.Entry
	metrics *metrics.CommerceMetrics
	timeout time.Duration
}

// NewCompensator создаёт компенсатор. metrics может быть nil.
func NewCompensator(logger *log.Entry, m *metrics.CommerceMetrics) *Compensator {
	if logger == nil {
		logger = log.New().WithField("component", "compensator")
	}
	return &Compensator{logger: logger, metrics: m, timeout: compensationTimeout}
}

// Run выполняет fn на контексте, не зависящем от отмены запроса.
// Ошибка компенсации логируется и возвращается вызывающему для логов;
// исходную ошибку операции она не заменяет.
func (c *Compensator) Run(ctx context.Context, op string, fields log.Fields, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	err := fn(cctx)
	entry := c.logger.WithFields(fields).WithField("op", op)
	if err != nil {
		c.metrics.RecordCompensation(op, metrics.ResultError)
		entry.WithError(err).Error("компенсация не выполнена, требуется ручная сверка остатков")
		return err
	}
	c.metrics.RecordCompensation(op, metrics.ResultOK)
	entry.Info("компенсация выполнена")
	return nil
}

// IsRetryable сообщает, имеет ли смысл повторять запрос целиком.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrConcurrentUpdate) || domain.IsStoreUnavailable(err)
}
