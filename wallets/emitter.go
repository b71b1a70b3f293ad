package wallets

import (
	"sync"

	"github.com/ipfs-force-community/sophon-connector/types"
)

// Emitter is the callback registry adapters embed to implement Subscribe.
type Emitter struct {
	lk     sync.Mutex
	nextID int
	subs   map[int]func(types.AdapterEvent)
	order  []int
}

func (e *Emitter) Subscribe(fn func(types.AdapterEvent)) (unsubscribe func()) {
	e.lk.Lock()
	if e.subs == nil {
		e.subs = make(map[int]func(types.AdapterEvent))
	}
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.order = append(e.order, id)
	e.lk.Unlock()

	return func() {
		e.lk.Lock()
		defer e.lk.Unlock()
		if _, ok := e.subs[id]; !ok {
			return
		}
		delete(e.subs, id)
		for i, cur := range e.order {
			if cur == id {
				e.order = append(e.order[:i:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// Emit calls every subscriber in registration order. Subscribers removed
// while Emit runs are not called afterwards.
func (e *Emitter) Emit(ev types.AdapterEvent) {
	e.lk.Lock()
	ids := make([]int, len(e.order))
	copy(ids, e.order)
	e.lk.Unlock()

	for _, id := range ids {
		e.lk.Lock()
		fn, ok := e.subs[id]
		e.lk.Unlock()
		if ok {
			fn(ev)
		}
	}
}

func (e *Emitter) Subscribers() int {
	e.lk.Lock()
	defer e.lk.Unlock()
	return len(e.subs)
}
