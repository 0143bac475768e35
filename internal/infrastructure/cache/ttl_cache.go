package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache es una caché en memoria, segura para concurrencia, con expiración por entrada.
// Los lectores comparten el valor almacenado; no debe mutarse tras Put.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	entries map[K]entry[V]
}

// NewTTLCache crea una caché vacía con el reloj del sistema.
func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return NewTTLCacheWithClock[K, V](clockwork.NewRealClock())
}

// NewTTLCacheWithClock permite inyectar un reloj (tests).
func NewTTLCacheWithClock[K comparable, V any](clock clockwork.Clock) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		clock:   clock,
		entries: make(map[K]entry[V]),
	}
}

// Get devuelve el valor si existe y no ha expirado.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.mu.Lock()
		// Otra goroutine pudo haber renovado la entrada entre ambos locks.
		if cur, still := c.entries[key]; still && !c.clock.Now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Put almacena el valor durante ttl. Un ttl <= 0 no almacena nada.
func (c *TTLCache[K, V]) Put(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.clock.Now().Add(ttl)}
}

// Delete elimina la entrada.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear vacía la caché.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// Len devuelve el número de entradas (incluye expiradas aún no purgadas).
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
