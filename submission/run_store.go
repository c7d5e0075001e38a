package submission

import (
	"sync"
)

const defaultRunStoreSize = 100

// RunStore keeps recent run results in memory for the status API.
// Results are stored by value so readers never observe a run mid-update.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]Result
	order []string
	max   int
}

func NewRunStore(max int) *RunStore {
	if max <= 0 {
		max = defaultRunStoreSize
	}
	return &RunStore{runs: make(map[string]Result), max: max}
}

// Put records (or refreshes) a run result, evicting the oldest entry
// once the store is full.
func (s *RunStore) Put(res *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[res.RunID]; !exists {
		s.order = append(s.order, res.RunID)
		if len(s.order) > s.max {
			delete(s.runs, s.order[0])
			s.order = s.order[1:]
		}
	}
	s.runs[res.RunID] = *res
}

func (s *RunStore) Get(runID string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.runs[runID]
	return res, ok
}

// Recent returns stored results, newest first.
func (s *RunStore) Recent() []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Result, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if res, ok := s.runs[s.order[i]]; ok {
			out = append(out, res)
		}
	}
	return out
}
