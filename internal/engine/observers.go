package engine

import (
	"slices"
	"sync"
)

// Progress is one execution progress report parsed from the engine.
type Progress struct {
	Scope   string  `json:"scope"`
	Ratio   float64 `json:"ratio"`
	Frame   int     `json:"frame"`
	OutTime string  `json:"outTime"`
	Speed   float64 `json:"speed"`
	Done    bool    `json:"done"`
}

// LogLine is one diagnostic line emitted by the engine.
type LogLine struct {
	Scope   string `json:"scope"`
	Message string `json:"message"`
}

// observers fans events out to a bounded set of callbacks. Delivery is
// synchronous and ordered; each event reaches each subscriber at most once.
type observers[T any] struct {
	mu      sync.Mutex
	deliver sync.Mutex
	limit   int
	nextID  int
	subs    map[int]func(T)
}

func newObservers[T any](limit int) *observers[T] {
	if limit <= 0 {
		limit = 16
	}
	return &observers[T]{limit: limit, subs: make(map[int]func(T))}
}

func (o *observers[T]) subscribe(fn func(T)) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.subs) >= o.limit {
		return nil, ErrTooManySubscribers
	}
	id := o.nextID
	o.nextID++
	o.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}, nil
}

func (o *observers[T]) emit(event T) {
	o.deliver.Lock()
	defer o.deliver.Unlock()

	o.mu.Lock()
	ids := make([]int, 0, len(o.subs))
	for id := range o.subs {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		o.mu.Lock()
		fn, ok := o.subs[id]
		o.mu.Unlock()
		if ok && fn != nil {
			fn(event)
		}
	}
}
