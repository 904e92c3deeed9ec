package verticalmap

import (
	"github.com/bits-and-blooms/bitset"
)

// node is a set-trie node. Its children cover bits [offset, dimension);
// the child for bit i sits at subtries[i-offset] and has offset i+1.
type node[V any] struct {
	offset    int
	dimension int
	subtries  []*node[V]
	value     V
	hasValue  bool
}

func newNode[V any](offset, dimension int) *node[V] {
	return &node[V]{offset: offset, dimension: dimension}
}

func (n *node[V]) child(bit int) *node[V] {
	if n.subtries == nil {
		return nil
	}
	return n.subtries[bit-n.offset]
}

func (n *node[V]) getOrCreateChild(bit int) *node[V] {
	if n.subtries == nil {
		n.subtries = make([]*node[V], n.dimension-n.offset)
	}
	c := n.subtries[bit-n.offset]
	if c == nil {
		c = newNode[V](bit+1, n.dimension)
		n.subtries[bit-n.offset] = c
	}
	return c
}

// isEmpty reports whether the node holds neither a value nor any child.
func (n *node[V]) isEmpty() bool {
	if n.hasValue {
		return false
	}
	for _, c := range n.subtries {
		if c != nil {
			return false
		}
	}
	return true
}

// visitor receives the bits of the current path and the stored value. The
// bitset is reused across calls. Returning false stops the traversal.
type visitor[V any] func(path *bitset.BitSet, value V) bool

func (n *node[V]) put(key *bitset.BitSet, value V) (V, bool) {
	cur := n
	for i, ok := key.NextSet(0); ok; i, ok = key.NextSet(i + 1) {
		cur = cur.getOrCreateChild(int(i))
	}
	old, existed := cur.value, cur.hasValue
	cur.value, cur.hasValue = value, true
	return old, existed
}

func (n *node[V]) find(key *bitset.BitSet) *node[V] {
	cur := n
	for i, ok := key.NextSet(0); ok; i, ok = key.NextSet(i + 1) {
		cur = cur.child(int(i))
		if cur == nil {
			return nil
		}
	}
	return cur
}

// remove deletes the value at key starting from bit from and prunes
// children that become empty.
func (n *node[V]) remove(key *bitset.BitSet, from uint) (V, bool) {
	bit, ok := key.NextSet(from)
	if !ok {
		old, existed := n.value, n.hasValue
		var zero V
		n.value, n.hasValue = zero, false
		return old, existed
	}
	c := n.child(int(bit))
	if c == nil {
		var zero V
		return zero, false
	}
	old, existed := c.remove(key, bit+1)
	if existed && c.isEmpty() {
		n.subtries[int(bit)-n.offset] = nil
	}
	return old, existed
}

func (n *node[V]) traverse(path *bitset.BitSet, visit visitor[V]) bool {
	if n.hasValue && !visit(path, n.value) {
		return false
	}
	for i, c := range n.subtries {
		if c == nil {
			continue
		}
		bit := uint(n.offset + i)
		path.Set(bit)
		cont := c.traverse(path, visit)
		path.Clear(bit)
		if !cont {
			return false
		}
	}
	return true
}

// collectSubsets visits every entry whose key is a subset of key.
func (n *node[V]) collectSubsets(key *bitset.BitSet, from uint, path *bitset.BitSet, visit visitor[V]) bool {
	if n.hasValue && !visit(path, n.value) {
		return false
	}
	if n.subtries == nil {
		return true
	}
	for i, ok := key.NextSet(from); ok && int(i) < n.dimension; i, ok = key.NextSet(i + 1) {
		c := n.subtries[int(i)-n.offset]
		if c == nil {
			continue
		}
		path.Set(i)
		cont := c.collectSubsets(key, i+1, path, visit)
		path.Clear(i)
		if !cont {
			return false
		}
	}
	return true
}

// collectSupersets visits every entry whose key is a superset of key and
// avoids every bit of blacklist (which may be nil).
func (n *node[V]) collectSupersets(key, blacklist, path *bitset.BitSet, visit visitor[V]) bool {
	next, pending := key.NextSet(uint(n.offset))
	if !pending {
		if n.hasValue && !visit(path, n.value) {
			return false
		}
	}
	if n.subtries == nil {
		return true
	}
	end := n.dimension
	if pending {
		end = int(next) + 1
	}
	for bit := n.offset; bit < end; bit++ {
		c := n.subtries[bit-n.offset]
		if c == nil || (blacklist != nil && blacklist.Test(uint(bit))) {
			continue
		}
		path.Set(uint(bit))
		cont := c.collectSupersets(key, blacklist, path, visit)
		path.Clear(uint(bit))
		if !cont {
			return false
		}
	}
	return true
}
