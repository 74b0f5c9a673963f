package ota

import "sync"

// keyedLocks — single-writer-per-key: сериализует read-modify-write по
// естественному ключу документа (юнит, девайс-день). Мьютексы создаются
// лениво и не освобождаются — ключей в пределах процесса немного.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{m: make(map[string]*sync.Mutex)}
}

func (l *keyedLocks) lock(key string) func() {
	l.mu.Lock()
	k, ok := l.m[key]
	if !ok {
		k = &sync.Mutex{}
		l.m[key] = k
	}
	l.mu.Unlock()

	k.Lock()
	return k.Unlock
}
