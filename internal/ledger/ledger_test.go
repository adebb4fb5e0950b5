package ledger_test

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/ledger"
)

func TestDecode_RoundTrip(t *testing.T) {
	seq := []string{"p1", "3", "p2", "1", "p3", "10"}

	l, err := ledger.Decode(seq)
	require.NoError(t, err)
	require.Equal(t, 3, l.Len())
	require.Equal(t, int64(14), l.TotalQuantity())
	require.Equal(t, seq, ledger.Encode(l))
}

func TestDecode_Malformed(t *testing.T) {
	cases := []struct {
		name string
		seq  []string
	}{
		{name: "odd length", seq: []string{"p1", "1", "p2"}},
		{name: "non numeric", seq: []string{"p1", "three"}},
		{name: "duplicate id", seq: []string{"p1", "1", "p1", "2"}},
		{name: "zero quantity", seq: []string{"p1", "0"}},
		{name: "negative quantity", seq: []string{"p1", "-2"}},
		{name: "empty id", seq: []string{"", "1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Decode(tc.seq)
			require.ErrorIs(t, err, ledger.ErrMalformed)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	l, err := ledger.Decode(nil)
	require.NoError(t, err)
	require.True(t, l.Empty())
	require.Empty(t, ledger.Encode(l))
}

func TestUpsert(t *testing.T) {
	cases := []struct {
		name    string
		seq     []string
		id      string
		delta   int64
		want    []string
		wantErr error
	}{
		{name: "append new", seq: []string{"p1", "2"}, id: "p2", delta: 3, want: []string{"p1", "2", "p2", "3"}},
		{name: "increase in place", seq: []string{"p1", "2", "p2", "3"}, id: "p1", delta: 4, want: []string{"p1", "6", "p2", "3"}},
		{name: "decrease in place", seq: []string{"p1", "2", "p2", "3"}, id: "p2", delta: -1, want: []string{"p1", "2", "p2", "2"}},
		{name: "zero removes pair", seq: []string{"p1", "2", "p2", "3"}, id: "p1", delta: -2, want: []string{"p2", "3"}},
		{name: "below zero", seq: []string{"p1", "2"}, id: "p1", delta: -3, wantErr: ledger.ErrInsufficientQuantity},
		{name: "absent decrease", seq: []string{"p1", "2"}, id: "p9", delta: -1, wantErr: ledger.ErrInvalidOperation},
		{name: "absent zero", seq: []string{"p1", "2"}, id: "p9", delta: 0, wantErr: ledger.ErrInvalidOperation},
		{name: "malformed input", seq: []string{"p1"}, id: "p1", delta: 1, wantErr: ledger.ErrMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ledger.Upsert(tc.seq, tc.id, tc.delta)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestApply_ErrorLeavesLedgerUntouched(t *testing.T) {
	l, err := ledger.New(ledger.Entry{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	_, err = l.Apply("p1", -5)
	require.ErrorIs(t, err, ledger.ErrInsufficientQuantity)

	qty, ok := l.Quantity("p1")
	require.True(t, ok)
	require.Equal(t, int64(2), qty)
}

func TestApply_CloneIsIndependent(t *testing.T) {
	l, err := ledger.New(
		ledger.Entry{ProductID: "p1", Quantity: 2},
		ledger.Entry{ProductID: "p2", Quantity: 5},
	)
	require.NoError(t, err)

	c := l.Clone()
	_, err = c.Apply("p1", -2)
	require.NoError(t, err)
	_, err = c.Apply("p2", 1)
	require.NoError(t, err)

	require.Equal(t, []string{"p1", "2", "p2", "5"}, ledger.Encode(l))
	require.Equal(t, []string{"p2", "6"}, ledger.Encode(c))
}

// Случайная последовательность операций сохраняет инварианты ledger и совпадает
// с простой моделью на map.
func TestApply_MatchesModel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := []string{"a", "b", "c", "d"}

	var l ledger.Ledger
	model := map[string]int64{}

	for step := 0; step < 2000; step++ {
		id := ids[rng.Intn(len(ids))]
		delta := int64(rng.Intn(7) - 3)

		_, err := l.Apply(id, delta)

		current, present := model[id]
		switch {
		case !present && delta <= 0:
			require.True(t, errors.Is(err, ledger.ErrInvalidOperation), "step %d: %s", step, spew.Sdump(l.Entries()))
		case current+delta < 0:
			require.True(t, errors.Is(err, ledger.ErrInsufficientQuantity), "step %d: %s", step, spew.Sdump(l.Entries()))
		case current+delta == 0:
			require.NoError(t, err)
			delete(model, id)
		default:
			require.NoError(t, err)
			model[id] = current + delta
		}

		require.Equal(t, len(model), l.Len(), "step %d: %s", step, spew.Sdump(l.Entries()))
		for _, e := range l.Entries() {
			require.Positive(t, e.Quantity)
			require.Equal(t, model[e.ProductID], e.Quantity)
		}

		decoded, err := ledger.Decode(ledger.Encode(l))
		require.NoError(t, err)
		require.Equal(t, l.Entries(), decoded.Entries())
	}
}

func TestLedger_JSON(t *testing.T) {
	l, err := ledger.New(ledger.Entry{ProductID: "p1", Quantity: 7})
	require.NoError(t, err)

	raw, err := json.Marshal(l)
	require.NoError(t, err)
	require.JSONEq(t, `["p1","7"]`, string(raw))

	var back ledger.Ledger
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, l.Entries(), back.Entries())

	require.ErrorIs(t, json.Unmarshal([]byte(`["p1"]`), &back), ledger.ErrMalformed)
}
