// Package ledger хранит позиции корзины или заказа: упорядоченное отображение
// идентификатора товара в положительное количество.
//
// В хранилище и в событиях ledger представлен плоской последовательностью строк
// [id1, qty1, id2, qty2, ...]. Внутри сервиса используется только Ledger.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrMalformed возвращается, если плоскую последовательность нельзя разобрать.
	ErrMalformed = errors.New("malformed item ledger")
	// ErrInsufficientQuantity возвращается, если после изменения количество стало бы отрицательным.
	ErrInsufficientQuantity = errors.New("insufficient quantity in ledger")
	// ErrInvalidOperation возвращается при уменьшении количества отсутствующей позиции.
	ErrInvalidOperation = errors.New("invalid ledger operation")
)

// Entry одна позиция ledger.
type Entry struct {
	ProductID string
	Quantity  int64
}

// Ledger упорядоченный набор позиций. Порядок совпадает с порядком добавления,
// идентификаторы уникальны, количество всегда больше нуля.
// Нулевое значение готово к использованию.
type Ledger struct {
	entries []Entry
}

// New собирает ledger из позиций, проверяя те же правила, что и Decode.
func New(entries ...Entry) (Ledger, error) {
	var l Ledger
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return Ledger{}, err
		}
		if l.index(e.ProductID) >= 0 {
			return Ledger{}, fmt.Errorf("%w: duplicate product %q", ErrMalformed, e.ProductID)
		}
		l.entries = append(l.entries, e)
	}
	return l, nil
}

// Len возвращает количество позиций.
func (l Ledger) Len() int {
	return len(l.entries)
}

// Empty сообщает, что в ledger нет позиций.
func (l Ledger) Empty() bool {
	return len(l.entries) == 0
}

// Entries возвращает копию позиций в порядке добавления.
func (l Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Quantity возвращает количество товара и признак его наличия.
func (l Ledger) Quantity(productID string) (int64, bool) {
	if i := l.index(productID); i >= 0 {
		return l.entries[i].Quantity, true
	}
	return 0, false
}

// TotalQuantity сумма количеств по всем позициям.
func (l Ledger) TotalQuantity() int64 {
	var total int64
	for _, e := range l.entries {
		total += e.Quantity
	}
	return total
}

// Clone возвращает независимую копию.
func (l Ledger) Clone() Ledger {
	return Ledger{entries: l.Entries()}
}

// Apply изменяет количество товара на delta и возвращает новое количество.
//
// Для существующей позиции: отрицательный результат -> ErrInsufficientQuantity,
// ноль удаляет позицию, иначе количество обновляется на месте.
// Для отсутствующей: delta <= 0 -> ErrInvalidOperation, иначе позиция добавляется в конец.
// При ошибке ledger не меняется.
func (l *Ledger) Apply(productID string, delta int64) (int64, error) {
	if productID == "" {
		return 0, fmt.Errorf("%w: empty product id", ErrInvalidOperation)
	}

	i := l.index(productID)
	if i < 0 {
		if delta <= 0 {
			return 0, fmt.Errorf("%w: product %q is not in ledger", ErrInvalidOperation, productID)
		}
		l.entries = append(l.entries, Entry{ProductID: productID, Quantity: delta})
		return delta, nil
	}

	next := l.entries[i].Quantity + delta
	switch {
	case next < 0:
		return 0, fmt.Errorf("%w: product %q has %d, requested %d", ErrInsufficientQuantity, productID, l.entries[i].Quantity, -delta)
	case next == 0:
		// копируем, чтобы не портить массив, разделяемый с клонами
		rest := make([]Entry, 0, len(l.entries)-1)
		rest = append(rest, l.entries[:i]...)
		rest = append(rest, l.entries[i+1:]...)
		l.entries = rest
	default:
		updated := make([]Entry, len(l.entries))
		copy(updated, l.entries)
		updated[i].Quantity = next
		l.entries = updated
	}
	return next, nil
}

func (l Ledger) index(productID string) int {
	for i, e := range l.entries {
		if e.ProductID == productID {
			return i
		}
	}
	return -1
}

func validateEntry(e Entry) error {
	if e.ProductID == "" {
		return fmt.Errorf("%w: empty product id", ErrMalformed)
	}
	if e.Quantity <= 0 {
		return fmt.Errorf("%w: product %q has non-positive quantity %d", ErrMalformed, e.ProductID, e.Quantity)
	}
	return nil
}

// Encode переводит ledger в плоскую последовательность [id, qty, ...].
func Encode(l Ledger) []string {
	out := make([]string, 0, 2*len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.ProductID, strconv.FormatInt(e.Quantity, 10))
	}
	return out
}

// Decode разбирает плоскую последовательность. Нечётная длина, нечисловое
// количество, повтор идентификатора, пустой id или количество <= 0 дают ErrMalformed.
func Decode(seq []string) (Ledger, error) {
	if len(seq)%2 != 0 {
		return Ledger{}, fmt.Errorf("%w: odd length %d", ErrMalformed, len(seq))
	}

	entries := make([]Entry, 0, len(seq)/2)
	for i := 0; i < len(seq); i += 2 {
		qty, err := strconv.ParseInt(seq[i+1], 10, 64)
		if err != nil {
			return Ledger{}, fmt.Errorf("%w: quantity %q at position %d", ErrMalformed, seq[i+1], i+1)
		}
		entries = append(entries, Entry{ProductID: seq[i], Quantity: qty})
	}
	return New(entries...)
}

// Upsert применяет Apply к плоской последовательности и возвращает новую последовательность.
func Upsert(seq []string, productID string, delta int64) ([]string, error) {
	l, err := Decode(seq)
	if err != nil {
		return nil, err
	}
	if _, err := l.Apply(productID, delta); err != nil {
		return nil, err
	}
	return Encode(l), nil
}

// MarshalJSON кодирует ledger плоским массивом строк.
func (l Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(Encode(l))
}

// UnmarshalJSON разбирает плоский массив строк через Decode.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var seq []string
	if err := json.Unmarshal(data, &seq); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	decoded, err := Decode(seq)
	if err != nil {
		return err
	}
	*l = decoded
	return nil
}
