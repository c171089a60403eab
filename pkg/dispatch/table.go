package dispatch

import (
	"errors"

	"github.com/nanorpc/nanorpc/internal/wire"
)

// ErrInvalidMethodName is returned by Add when name is empty or longer
// than wire.MaxMethodNameLen.
var ErrInvalidMethodName = errors.New("dispatch: invalid method name")

// ErrDuplicateMethod is returned by Add when name is already registered.
var ErrDuplicateMethod = errors.New("dispatch: duplicate method name")

const noNext = -1

type tableEntry struct {
	occupied bool
	hash     uint32
	name     string
	cb       Handler
	udata    any
	next     int
}

// methodTable is an open-addressed hash table with intrusive chaining,
// grounded on the original's mrpc_service_table_t / _mrpc_stbl_* family.
type methodTable struct {
	array []tableEntry
	size  int
}

func newMethodTable(capacity int) *methodTable {
	if capacity <= 0 {
		capacity = 1
	}
	capacity = nextPowerOfTwo(capacity)
	array := make([]tableEntry, capacity)
	for i := range array {
		array[i].next = noNext
	}
	return &methodTable{array: array}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// calcHash mixes name's bytes with the original's XOR-rotate function,
// val = val ^ ((val<<5)+(val>>2)+byte), performed in 32-bit arithmetic to
// match the original's `int` accumulator bit-for-bit. Unlike the original,
// the result is reinterpreted as unsigned before it is ever used as a
// modulus operand: the original takes `fhash % cap` directly on a signed
// int, which is a negative (and therefore out-of-bounds) array index
// whenever the accumulator's sign bit ends up set. This module computes
// the identical bit pattern and then treats it as unsigned, preserving the
// hash's distribution without replicating the crash.
func calcHash(name string) uint32 {
	var val int32
	for i := 0; i < len(name); i++ {
		val = val ^ ((val << 5) + (val >> 2) + int32(name[i]))
	}
	return uint32(val)
}

// querySlot finds (or creates) the slot e belongs in, following the
// original's _mrpc_stbl_query_slot: the home slot is e.hash mod cap; if
// free, e is placed there directly. Otherwise the chain rooted at the home
// slot is walked to its tail, a free slot is found by linear probing from
// hash+1, and the tail's next pointer is updated to point at it. Returns
// ok=false if name already appears anywhere in the chain.
func (t *methodTable) querySlot(e tableEntry) (idx int, ok bool) {
	size := uint32(len(t.array))
	home := int(e.hash % size)

	if !t.array[home].occupied {
		e.next = noNext
		t.array[home] = e
		return home, true
	}

	cur := home
	for t.array[cur].next != noNext {
		if t.array[cur].name == e.name {
			return -1, false
		}
		cur = t.array[cur].next
	}
	if t.array[cur].name == e.name {
		return -1, false
	}

	free := -1
	for i := uint32(1); i <= size; i++ {
		probe := int((e.hash + i) % size)
		if !t.array[probe].occupied {
			free = probe
			break
		}
	}
	if free == -1 {
		return -1, false
	}

	e.next = noNext
	t.array[free] = e
	t.array[cur].next = free
	return free, true
}

// rehash doubles the table and reinserts every occupied entry, grounded on
// _mrpc_stbl_rehash.
func (t *methodTable) rehash() *methodTable {
	next := newMethodTable(len(t.array) * 2)
	for _, e := range t.array {
		if !e.occupied {
			continue
		}
		e.next = noNext
		if _, ok := next.querySlot(e); !ok {
			panic("dispatch: rehash produced a collision among previously-unique entries")
		}
		next.size++
	}
	return next
}

// insert adds name/cb/udata, growing the table first if it is at capacity.
func (t *methodTable) insert(name string, cb Handler, udata any) (*methodTable, error) {
	if len(name) == 0 || len(name) > wire.MaxMethodNameLen {
		return t, ErrInvalidMethodName
	}

	tbl := t
	if tbl.size == len(tbl.array) {
		tbl = tbl.rehash()
	}

	e := tableEntry{occupied: true, hash: calcHash(name), name: name, cb: cb, udata: udata}
	if _, ok := tbl.querySlot(e); !ok {
		return tbl, ErrDuplicateMethod
	}
	tbl.size++
	return tbl, nil
}

// lookup walks the chain rooted at name's home slot, grounded on
// mrpc_stbl_query.
func (t *methodTable) lookup(name string) (tableEntry, bool) {
	if len(name) == 0 || len(name) > wire.MaxMethodNameLen {
		return tableEntry{}, false
	}
	h := calcHash(name)
	idx := int(h % uint32(len(t.array)))
	if !t.array[idx].occupied {
		return tableEntry{}, false
	}
	for {
		e := t.array[idx]
		if e.hash == h && e.name == name {
			return e, true
		}
		if e.next == noNext {
			return tableEntry{}, false
		}
		idx = e.next
	}
}
