package state

import "sync"

// listeners хранит подписчиков на изменения агрегата.
// Вызывается после снятия блокировки агрегата, поэтому подписчик может читать состояние.
type listeners struct {
	fns []func()
	mu  sync.Mutex
}

func (l *listeners) add(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

func (l *listeners) notify() {
	l.mu.Lock()
	fns := make([]func(), len(l.fns))
	copy(fns, l.fns)
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
