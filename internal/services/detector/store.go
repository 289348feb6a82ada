package detector

import (
	"sort"
	"sync"
	"time"
)

// seriesStore holds each region's composite series in memory, ascending
// by date. Appends out of order are re-sorted in place; a second sample
// on the same composite date replaces the first.
type seriesStore struct {
	mu     sync.RWMutex
	dates  map[string][]time.Time
	values map[string][]float64
}

func newSeriesStore() *seriesStore {
	return &seriesStore{
		dates:  make(map[string][]time.Time),
		values: make(map[string][]float64),
	}
}

func (st *seriesStore) Append(regionID string, t time.Time, v float64) {
	st.mu.Lock()
	defer st.mu.Unlock()

	dates := st.dates[regionID]
	values := st.values[regionID]

	// common case: strictly newer than everything seen so far
	if n := len(dates); n == 0 || t.After(dates[n-1]) {
		st.dates[regionID] = append(dates, t)
		st.values[regionID] = append(values, v)
		return
	}

	i := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(t) })
	if i < len(dates) && dates[i].Equal(t) {
		values[i] = v
		return
	}
	dates = append(dates, time.Time{})
	copy(dates[i+1:], dates[i:])
	dates[i] = t
	values = append(values, 0)
	copy(values[i+1:], values[i:])
	values[i] = v
	st.dates[regionID] = dates
	st.values[regionID] = values
}

// Replace swaps in a full backfilled series. dates must be ascending.
func (st *seriesStore) Replace(regionID string, dates []time.Time, values []float64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.dates[regionID] = append([]time.Time(nil), dates...)
	st.values[regionID] = append([]float64(nil), values...)
}

// Series returns copies so callers can analyse without holding the lock.
func (st *seriesStore) Series(regionID string) ([]time.Time, []float64) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	dates := append([]time.Time(nil), st.dates[regionID]...)
	values := append([]float64(nil), st.values[regionID]...)
	return dates, values
}

func (st *seriesStore) Len(regionID string) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.dates[regionID])
}
