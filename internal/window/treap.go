package window

const nilNode int32 = -1

type treapNode struct {
	v           float64
	prio        uint32
	size        int32
	left, right int32
}

// treap is a size-augmented randomized BST over a node pool. Duplicate
// values are kept as separate nodes.
type treap struct {
	nodes []treapNode
	free  []int32
	root  int32
	seed  uint32
}

func newTreap(capacity int) treap {
	return treap{
		nodes: make([]treapNode, 0, capacity),
		root:  nilNode,
		seed:  0x9e3779b9,
	}
}

func (t *treap) len() int { return int(t.size(t.root)) }

func (t *treap) size(n int32) int32 {
	if n == nilNode {
		return 0
	}
	return t.nodes[n].size
}

func (t *treap) fix(n int32) {
	nd := &t.nodes[n]
	nd.size = 1 + t.size(nd.left) + t.size(nd.right)
}

// xorshift32; deterministic so replays rebuild identical shapes.
func (t *treap) rand() uint32 {
	x := t.seed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	t.seed = x
	return x
}

func (t *treap) alloc(v float64) int32 {
	nd := treapNode{v: v, prio: t.rand(), size: 1, left: nilNode, right: nilNode}
	if k := len(t.free); k > 0 {
		id := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = nd
		return id
	}
	t.nodes = append(t.nodes, nd)
	return int32(len(t.nodes) - 1)
}

// split partitions n into values < v (or <= v when inclusive) and the rest.
func (t *treap) split(n int32, v float64, inclusive bool) (int32, int32) {
	if n == nilNode {
		return nilNode, nilNode
	}
	nd := &t.nodes[n]
	goesLeft := nd.v < v || (inclusive && nd.v == v)
	if goesLeft {
		l, r := t.split(nd.right, v, inclusive)
		t.nodes[n].right = l
		t.fix(n)
		return n, r
	}
	l, r := t.split(nd.left, v, inclusive)
	t.nodes[n].left = r
	t.fix(n)
	return l, n
}

func (t *treap) merge(a, b int32) int32 {
	if a == nilNode {
		return b
	}
	if b == nilNode {
		return a
	}
	if t.nodes[a].prio > t.nodes[b].prio {
		t.nodes[a].right = t.merge(t.nodes[a].right, b)
		t.fix(a)
		return a
	}
	t.nodes[b].left = t.merge(a, t.nodes[b].left)
	t.fix(b)
	return b
}

func (t *treap) insert(v float64) {
	l, r := t.split(t.root, v, false)
	t.root = t.merge(t.merge(l, t.alloc(v)), r)
}

// remove deletes one node holding v. Missing values are a no-op.
func (t *treap) remove(v float64) {
	l, r := t.split(t.root, v, false)
	m, r2 := t.split(r, v, true)
	if m != nilNode {
		old := m
		m = t.merge(t.nodes[m].left, t.nodes[m].right)
		t.free = append(t.free, old)
	}
	t.root = t.merge(t.merge(l, m), r2)
}

// kth returns the k-th smallest value, 1-based. k must be within [1, len].
func (t *treap) kth(k int) float64 {
	n := t.root
	kk := int32(k)
	for n != nilNode {
		ls := t.size(t.nodes[n].left)
		switch {
		case kk <= ls:
			n = t.nodes[n].left
		case kk == ls+1:
			return t.nodes[n].v
		default:
			kk -= ls + 1
			n = t.nodes[n].right
		}
	}
	return 0
}

// countLess returns the number of stored values strictly below v.
func (t *treap) countLess(v float64) int {
	var c int32
	n := t.root
	for n != nilNode {
		nd := &t.nodes[n]
		if nd.v < v {
			c += t.size(nd.left) + 1
			n = nd.right
		} else {
			n = nd.left
		}
	}
	return int(c)
}

func (t *treap) reset() {
	t.nodes = t.nodes[:0]
	t.free = t.free[:0]
	t.root = nilNode
	t.seed = 0x9e3779b9
}

func (t *treap) release() {
	t.nodes = nil
	t.free = nil
	t.root = nilNode
	t.seed = 0x9e3779b9
}
