package universe

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func symbolRange(prefix string, n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = fmt.Sprintf("%s%03d", prefix, i)
	}
	return out
}

func TestLoadDeduplicatesAcrossIndices(t *testing.T) {
	m := NewManager()
	m.Load([]Index{
		{Kind: IndexBroadMarket, Symbols: []string{"AAPL", "MSFT", "JPM"}},
		{Kind: IndexTechHeavy, Symbols: []string{"aapl", "MSFT", "NVDA"}},
	})

	assert.Equal(t, []string{"AAPL", "MSFT", "JPM", "NVDA"}, m.FullUniverse())
	assert.Equal(t, 4, m.Size())
	assert.True(t, m.Contains("nvda"))
	assert.False(t, m.Contains("TSLA"))
}

func TestWavePartitionInvariant(t *testing.T) {
	// Concatenating all waves must reproduce the universe exactly once
	for _, tc := range []struct {
		total, size int
	}{
		{total: 23, size: 5},
		{total: 20, size: 5},
		{total: 5, size: 2},
		{total: 1, size: 200},
		{total: 7, size: 7},
	} {
		m := NewManager()
		m.Load([]Index{{Kind: IndexBroadMarket, Symbols: symbolRange("SYM", tc.total)}})

		totalWaves := m.WrapInfo(tc.size).TotalWaves
		var concat []string
		for n := 0; n < totalWaves; n++ {
			concat = append(concat, m.Wave(n, tc.size)...)
		}
		assert.Equal(t, m.FullUniverse(), concat, "total=%d size=%d", tc.total, tc.size)

		// Out of range waves are empty
		assert.Empty(t, m.Wave(totalWaves, tc.size))
	}
}

func TestNextWaveWrapDetection(t *testing.T) {
	m := NewManager()
	m.Load([]Index{{Kind: IndexBroadMarket, Symbols: []string{"A", "B", "C", "D", "E"}}})

	// waves are [A,B], [C,D], [E], then wrap to [A,B]
	wave, num, wrapped := m.NextWave(2)
	assert.Equal(t, []string{"A", "B"}, wave)
	assert.Equal(t, 0, num)
	assert.False(t, wrapped, "initial wave 0 must not report a completed pass")

	wave, num, wrapped = m.NextWave(2)
	assert.Equal(t, []string{"C", "D"}, wave)
	assert.Equal(t, 1, num)
	assert.False(t, wrapped)

	wave, num, wrapped = m.NextWave(2)
	assert.Equal(t, []string{"E"}, wave)
	assert.Equal(t, 2, num)
	assert.False(t, wrapped)

	wave, num, wrapped = m.NextWave(2)
	assert.Equal(t, []string{"A", "B"}, wave)
	assert.Equal(t, 0, num)
	assert.True(t, wrapped, "wave 0 after a full pass must report wrap")
}

func TestNextWaveFiresWrapOncePerPass(t *testing.T) {
	m := NewManager()
	m.Load([]Index{{Kind: IndexBroadMarket, Symbols: symbolRange("SYM", 10)}})

	totalWaves := m.WrapInfo(3).TotalWaves
	require.Equal(t, 4, totalWaves)

	wraps := 0
	for i := 0; i < totalWaves*3; i++ {
		_, _, wrapped := m.NextWave(3)
		if wrapped {
			wraps++
		}
	}
	assert.Equal(t, 2, wraps, "three passes produce exactly two wrap signals")
}

func TestNextWaveEmptyUniverse(t *testing.T) {
	m := NewManager()

	wave, num, wrapped := m.NextWave(200)
	assert.Empty(t, wave)
	assert.Equal(t, 0, num)
	assert.False(t, wrapped)

	assert.Empty(t, m.FullUniverse())
	assert.Empty(t, m.Priority(500))
}

func TestLoadResetsCursor(t *testing.T) {
	m := NewManager()
	m.Load([]Index{{Kind: IndexBroadMarket, Symbols: []string{"A", "B", "C", "D"}}})

	m.NextWave(2)
	m.NextWave(2)

	m.Load([]Index{{Kind: IndexBroadMarket, Symbols: []string{"X", "Y", "Z"}}})
	wave, num, wrapped := m.NextWave(2)
	assert.Equal(t, []string{"X", "Y"}, wave)
	assert.Equal(t, 0, num)
	assert.False(t, wrapped, "a reload starts a fresh generation")
}

func TestPriorityOrderingAndDedup(t *testing.T) {
	m := NewManager()
	m.Load([]Index{
		{Kind: IndexBroadMarket, Symbols: []string{"JPM", "XOM", "SPY", "KO"}},
		{Kind: IndexMostLiquid, Symbols: []string{"AAPL", "SPY", "TSLA"}},
		{Kind: IndexETF, Symbols: []string{"SPY", "QQQ"}},
	})

	// ETFs first, then most-liquid, then broad market overflow
	assert.Equal(t, []string{"SPY", "QQQ", "AAPL", "TSLA", "JPM", "XOM", "KO"}, m.Priority(10))
	assert.Equal(t, []string{"SPY", "QQQ", "AAPL"}, m.Priority(3))
	assert.Empty(t, m.Priority(0))
}

func TestWrapInfo(t *testing.T) {
	m := NewManager()
	m.Load([]Index{{Kind: IndexBroadMarket, Symbols: symbolRange("SYM", 450)}})

	info := m.WrapInfo(200)
	assert.Equal(t, 450, info.TotalSymbols)
	assert.Equal(t, 200, info.WaveSize)
	assert.Equal(t, 3, info.TotalWaves)
	assert.Equal(t, 0, info.CurrentWave)
	assert.Equal(t, 0, info.SymbolsCovered)
	assert.Equal(t, 0.0, info.ProgressPct)

	m.NextWave(200)
	m.NextWave(200)

	info = m.WrapInfo(200)
	assert.Equal(t, 2, info.CurrentWave)
	assert.Equal(t, 400, info.SymbolsCovered)
	assert.InDelta(t, 88.89, info.ProgressPct, 0.01)
}

func TestWrapInfoEmptyUniverse(t *testing.T) {
	m := NewManager()
	info := m.WrapInfo(200)
	assert.Equal(t, 0, info.TotalSymbols)
	assert.Equal(t, 0, info.TotalWaves)
	assert.Equal(t, 0.0, info.ProgressPct)
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeSymbol("  aapl "))
	assert.Equal(t, "BRK.B", NormalizeSymbol("brk.b"))
	assert.Equal(t, "", NormalizeSymbol("   "))
}
