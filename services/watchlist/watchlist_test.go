package watchlist

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryAddListRemove(t *testing.T) {
	s := NewService(nil)

	_, err := s.Add("tsla", "breakout watch", decimal.NewFromFloat(250.50))
	require.NoError(t, err)
	_, err = s.Add("AAPL", "", decimal.Zero)
	require.NoError(t, err)

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "AAPL", entries[0].Symbol)
	assert.Equal(t, "TSLA", entries[1].Symbol)
	assert.Equal(t, "breakout watch", entries[1].Note)
	assert.True(t, entries[1].AddedPrice.Equal(decimal.NewFromFloat(250.50)))

	require.NoError(t, s.Remove("TSLA"))
	assert.Equal(t, []string{"AAPL"}, s.GetSymbols())
}

func TestAddUpsertsExisting(t *testing.T) {
	s := NewService(nil)

	first, err := s.Add("NVDA", "old note", decimal.NewFromInt(120))
	require.NoError(t, err)

	updated, err := s.Add("NVDA", "new note", decimal.NewFromInt(130))
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, "new note", updated.Note)

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestAddRejectsEmptySymbol(t *testing.T) {
	s := NewService(nil)

	_, err := s.Add("   ", "", decimal.Zero)
	assert.Error(t, err)
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	s := NewService(nil)
	assert.NoError(t, s.Remove("ZZZZ"))
}

func TestGetSymbolsEmpty(t *testing.T) {
	s := NewService(nil)
	assert.Empty(t, s.GetSymbols())
}
