package memory

// overlay buffers writes on top of a source map until they are committed.
// Reads see buffered writes first and fall through to the source.
type overlay[K comparable, V any] struct {
	src     map[K]V
	kvs     map[K]V
	journal []K
}

func newOverlay[K comparable, V any](src map[K]V) *overlay[K, V] {
	return &overlay[K, V]{src: src, kvs: make(map[K]V)}
}

func (o *overlay[K, V]) get(key K) (V, bool) {
	if v, ok := o.kvs[key]; ok {
		return v, true
	}
	v, ok := o.src[key]
	return v, ok
}

func (o *overlay[K, V]) put(key K, value V) {
	if _, seen := o.kvs[key]; !seen {
		o.journal = append(o.journal, key)
	}
	o.kvs[key] = value
}

// commit applies buffered writes to the source in first-write order.
func (o *overlay[K, V]) commit() {
	for _, key := range o.journal {
		o.src[key] = o.kvs[key]
	}
	o.kvs = make(map[K]V)
	o.journal = nil
}
