package inventory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockController конфигурируемая обёртка StockController для тестов.
// Без Next возвращает пустой товар; с Next передаёт вызов дальше,
// если для операции не задана ошибка.
type MockController struct {
	Next domain.StockController

	mu         sync.Mutex
	reserveErr error
	releaseErr error

	ReserveCalls int
	ReleaseCalls int
}

// NewMockController возвращает mock поверх next (может быть nil).
func NewMockController(next domain.StockController) *MockController {
	return &MockController{Next: next}
}

// FailReserve заставляет Reserve возвращать err (nil снимает ошибку).
func (m *MockController) FailReserve(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserveErr = err
}

// FailRelease заставляет Release возвращать err (nil снимает ошибку).
func (m *MockController) FailRelease(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseErr = err
}

// Reserve считает вызов и возвращает настроенную ошибку или результат Next.
func (m *MockController) Reserve(ctx context.Context, productID string, quantity int64) (domain.Product, error) {
	m.mu.Lock()
	m.ReserveCalls++
	err := m.reserveErr
	m.mu.Unlock()

	if err != nil {
		return domain.Product{}, err
	}
	if m.Next == nil {
		return domain.Product{ID: productID}, nil
	}
	return m.Next.Reserve(ctx, productID, quantity)
}

// Release считает вызов и возвращает настроенную ошибку или результат Next.
func (m *MockController) Release(ctx context.Context, productID string, quantity int64) (domain.Product, error) {
	m.mu.Lock()
	m.ReleaseCalls++
	err := m.releaseErr
	m.mu.Unlock()

	if err != nil {
		return domain.Product{}, err
	}
	if m.Next == nil {
		return domain.Product{ID: productID}, nil
	}
	return m.Next.Release(ctx, productID, quantity)
}

// Calls возвращает счётчики вызовов.
func (m *MockController) Calls() (reserve, release int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReserveCalls, m.ReleaseCalls
}

var _ domain.StockController = (*MockController)(nil)
