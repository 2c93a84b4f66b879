package universe

import (
	"log"
	"math"
	"strings"
	"sync"
	"time"
)

// IndexKind identifies one named constituent list
type IndexKind string

const (
	IndexBroadMarket IndexKind = "broad_market"
	IndexTechHeavy   IndexKind = "tech_heavy"
	IndexSmallCap    IndexKind = "small_cap"
	IndexETF         IndexKind = "etf"
	IndexMostLiquid  IndexKind = "most_liquid"
)

// Index is one named collection of constituent symbols. Multiple
// indices may contain the same symbol.
type Index struct {
	Kind        IndexKind `json:"kind"`
	Symbols     []string  `json:"symbols"`
	LastUpdated time.Time `json:"last_updated"`
}

// WrapInfo describes coverage progress of the current pass through
// the universe for a given wave size
type WrapInfo struct {
	TotalSymbols   int     `json:"total_symbols"`
	WaveSize       int     `json:"wave_size"`
	TotalWaves     int     `json:"total_waves"`
	CurrentWave    int     `json:"current_wave"`
	SymbolsCovered int     `json:"symbols_covered_estimate"`
	ProgressPct    float64 `json:"progress_pct"`
}

// Manager owns index membership and the deduplicated tradable universe.
// The universe is an ordered union built in index insertion order, so
// wave slicing is deterministic within one load generation. The wave
// cursor is mutex-guarded; NextWave must not be assumed idempotent.
type Manager struct {
	mu       sync.RWMutex
	indices  map[IndexKind]Index
	order    []IndexKind
	ordered  []string
	members  map[string]struct{}
	cursor   int
	started  bool
	loadedAt time.Time
}

// NewManager creates an empty universe manager. Until Load is called,
// all queries return empty results.
func NewManager() *Manager {
	return &Manager{
		indices: make(map[IndexKind]Index),
		members: make(map[string]struct{}),
	}
}

// NormalizeSymbol canonicalizes a ticker for identity comparison
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Load ingests one or more named index lists, rebuilding the ordered
// union. Idempotent; call again to pick up updated constituent lists.
// The wave cursor restarts at 0 for the new generation.
func (m *Manager) Load(indices []Index) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.indices = make(map[IndexKind]Index, len(indices))
	m.order = m.order[:0]
	m.ordered = m.ordered[:0]
	m.members = make(map[string]struct{})

	for _, idx := range indices {
		normalized := make([]string, 0, len(idx.Symbols))
		for _, s := range idx.Symbols {
			sym := NormalizeSymbol(s)
			if sym == "" {
				continue
			}
			normalized = append(normalized, sym)
			if _, seen := m.members[sym]; !seen {
				m.members[sym] = struct{}{}
				m.ordered = append(m.ordered, sym)
			}
		}
		idx.Symbols = normalized
		if idx.LastUpdated.IsZero() {
			idx.LastUpdated = time.Now()
		}
		if _, dup := m.indices[idx.Kind]; !dup {
			m.order = append(m.order, idx.Kind)
		}
		m.indices[idx.Kind] = idx
	}

	m.cursor = 0
	m.started = false
	m.loadedAt = time.Now()

	log.Printf("Universe loaded: %d indices, %d unique symbols", len(m.indices), len(m.ordered))
}

// FullUniverse returns a copy of the deduplicated union of all index
// members, in canonical order
func (m *Manager) FullUniverse() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// Size returns the number of unique symbols in the universe
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ordered)
}

// Contains reports whether the symbol belongs to the universe
func (m *Manager) Contains(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[NormalizeSymbol(symbol)]
	return ok
}

// LoadedAt returns the timestamp of the last Load
func (m *Manager) LoadedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadedAt
}

// Wave returns the n-th slice of the canonical ordering. Out-of-range
// wave numbers and an unloaded universe yield an empty slice.
func (m *Manager) Wave(n, size int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.waveLocked(n, size)
}

func (m *Manager) waveLocked(n, size int) []string {
	if size <= 0 || n < 0 {
		return nil
	}
	start := n * size
	if start >= len(m.ordered) {
		return nil
	}
	end := start + size
	if end > len(m.ordered) {
		end = len(m.ordered)
	}
	out := make([]string, end-start)
	copy(out, m.ordered[start:end])
	return out
}

// NextWave returns the current wave and advances the cursor, wrapping
// to 0 after the last wave. The wrapped flag is true only when a full
// pass completed, so the initial wave 0 is distinguishable from the
// wave 0 that starts each subsequent pass.
func (m *Manager) NextWave(size int) (symbols []string, waveNumber int, wrapped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size <= 0 || len(m.ordered) == 0 {
		return nil, 0, false
	}

	totalWaves := totalWavesFor(len(m.ordered), size)
	if m.cursor >= totalWaves {
		// wave size shrank since the last call; snap back to a full pass
		m.cursor = 0
	}

	waveNumber = m.cursor
	wrapped = m.started && waveNumber == 0
	symbols = m.waveLocked(waveNumber, size)

	m.started = true
	m.cursor++
	if m.cursor >= totalWaves {
		m.cursor = 0
	}
	return symbols, waveNumber, wrapped
}

// Priority returns an ordering-preserving, duplicate-free list biased
// toward the most liquid symbols: the ETF basket first, then the
// dedicated most-liquid index, then overflow from the broad market
// index, truncated to count.
func (m *Manager) Priority(count int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if count <= 0 {
		return nil
	}

	out := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for _, kind := range []IndexKind{IndexETF, IndexMostLiquid, IndexBroadMarket} {
		idx, ok := m.indices[kind]
		if !ok {
			continue
		}
		for _, sym := range idx.Symbols {
			if _, dup := seen[sym]; dup {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
			if len(out) >= count {
				return out
			}
		}
	}
	return out
}

// WrapInfo derives coverage progress from the universe size, the wave
// size and the cursor position
func (m *Manager) WrapInfo(size int) WrapInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := WrapInfo{
		TotalSymbols: len(m.ordered),
		WaveSize:     size,
	}
	if size <= 0 || info.TotalSymbols == 0 {
		return info
	}

	info.TotalWaves = totalWavesFor(info.TotalSymbols, size)
	info.CurrentWave = m.cursor
	covered := m.cursor * size
	if covered > info.TotalSymbols {
		covered = info.TotalSymbols
	}
	info.SymbolsCovered = covered
	info.ProgressPct = math.Round(float64(covered)/float64(info.TotalSymbols)*10000) / 100
	return info
}

func totalWavesFor(total, size int) int {
	return (total + size - 1) / size
}
