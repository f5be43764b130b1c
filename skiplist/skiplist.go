// Package skiplist implements IndexedSkipList: an ordered K->V container
// with a data layer and a tower of index layers above it, supporting
// insert/lookup/delete/range-scan with probabilistic O(log n) paths.
//
// Grounded on the skiplist exercise's skiplist.h/iterator.h: the same
// Path-based search, put_new promotion, and cursor shape, reexpressed over
// Go generics instead of C++ templates and a marker interface instead of
// dynamic_cast for the index tower's down-links.
package skiplist

import "math/rand"

// Less is a strict-weak-ordering predicate: equality is !less(a,b) &&
// !less(b,a).
type Less[K any] func(a, b K) bool

// node is the marker interface satisfied by both dataNode and indexNode,
// standing in for the original's polymorphic Node base class. An
// indexNode's down field is a node because layer-0 index nodes point down
// to a dataNode while higher layers point down to an indexNode.
type node interface {
	isNode()
}

type dataNode[K any, V any] struct {
	key   *K
	value *V
	next  *dataNode[K, V]
}

func (*dataNode[K, V]) isNode() {}

type indexNode[K any, V any] struct {
	down node
	root *dataNode[K, V]
	next *indexNode[K, V]
}

func (*indexNode[K, V]) isNode() {}

// SkipList is an ordered associative container with fixed maximum height.
// It is not safe for concurrent use; per spec §5 it is exclusively owned
// by its caller.
type SkipList[K any, V any] struct {
	height int
	less   Less[K]
	rng    *rand.Rand

	head    *dataNode[K, V]
	tail    *dataNode[K, V]
	tailIdx *indexNode[K, V]
	headIdx []*indexNode[K, V]
}

// Option configures a SkipList at construction time.
type Option[K any, V any] func(*SkipList[K, V])

// WithRand supplies an externally seeded fair-coin source for promotion,
// per spec §4.2 ("Promotion uses a fair coin source seeded externally").
func WithRand[K any, V any](r *rand.Rand) Option[K, V] {
	return func(s *SkipList[K, V]) { s.rng = r }
}

// New creates an empty skiplist with the given maximum height and
// ordering predicate.
func New[K any, V any](height int, less Less[K], opts ...Option[K, V]) *SkipList[K, V] {
	if height < 1 {
		height = 1
	}
	s := &SkipList[K, V]{
		height:  height,
		less:    less,
		rng:     rand.New(rand.NewSource(1)),
		headIdx: make([]*indexNode[K, V], height),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.head = &dataNode[K, V]{}
	s.tail = &dataNode[K, V]{}
	s.head.next = s.tail

	s.tailIdx = &indexNode[K, V]{down: s.tail, root: s.tail}

	var below node = s.head
	for i := 0; i < height; i++ {
		in := &indexNode[K, V]{down: below, root: s.head, next: s.tailIdx}
		s.headIdx[i] = in
		below = in
	}

	return s
}

func (s *SkipList[K, V]) flip() bool { return s.rng.Intn(2) == 1 }

// Put assigns value to key, returning the prior value if one existed.
// Grounded on SkipList::Put.
func (s *SkipList[K, V]) Put(key K, value V) (old V, hadOld bool) {
	p, found := s.search(key)
	if found {
		dn := p.data.next
		old = *dn.value
		v := value
		dn.value = &v
		return old, true
	}
	s.putNew(p, key, value)
	var zero V
	return zero, false
}

// PutIfAbsent assigns value to key only if key is not already present,
// returning the existing value when it is. Grounded on
// SkipList::PutIfAbsent.
func (s *SkipList[K, V]) PutIfAbsent(key K, value V) (existing V, hadExisting bool) {
	p, found := s.search(key)
	if found {
		return *p.data.next.value, true
	}
	s.putNew(p, key, value)
	var zero V
	return zero, false
}

// Get returns the value for key, if present. Grounded on SkipList::Get.
func (s *SkipList[K, V]) Get(key K) (V, bool) {
	p, found := s.search(key)
	if !found {
		var zero V
		return zero, false
	}
	return *p.data.next.value, true
}

// Delete removes key, returning its prior value if one existed, and
// unlinks every index node on the search path up to the remembered match
// level. Grounded on SkipList::Delete.
func (s *SkipList[K, V]) Delete(key K) (old V, hadOld bool) {
	p, found := s.search(key)
	if !found {
		var zero V
		return zero, false
	}

	for i := 0; i <= p.matchAt; i++ {
		p.idx[i].next = delIdx(p.idx[i].next)
	}

	data := p.data.next
	old = *data.value
	p.data.next = delData(data)
	return old, true
}

func (s *SkipList[K, V]) putNew(p path[K, V], key K, value V) {
	k, v := key, value
	dn := &dataNode[K, V]{key: &k, value: &v}
	dn.next = p.data.next
	p.data.next = dn

	var below node = dn
	for i := 0; i < s.height && s.flip(); i++ {
		in := &indexNode[K, V]{down: below, root: dn}
		in.next = p.idx[i].next
		p.idx[i].next = in
		below = in
	}
}

func delIdx[K any, V any](n *indexNode[K, V]) *indexNode[K, V] {
	next := n.next
	n.next = nil
	n.down = nil
	n.root = nil
	return next
}

func delData[K any, V any](n *dataNode[K, V]) *dataNode[K, V] {
	next := n.next
	n.next = nil
	n.key = nil
	n.value = nil
	return next
}

// Len counts the live keys by walking the data layer; O(n).
func (s *SkipList[K, V]) Len() int {
	n := 0
	for cur := s.head.next; cur != s.tail; cur = cur.next {
		n++
	}
	return n
}
