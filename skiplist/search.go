package skiplist

// path records, per layer, the predecessor index node, the highest level
// at which an exact match was found (-1 if none), and the data-layer
// predecessor. Insert and delete reuse a path to patch links without
// re-searching. Grounded on SkipList::Path.
type path[K any, V any] struct {
	idx     []*indexNode[K, V]
	matchAt int
	data    *dataNode[K, V]
}

// search descends the index tower from the top layer, recording the
// highest level at which the key matches, then walks the data layer to find the exact
// predecessor. Grounded on SkipList::search.
func (s *SkipList[K, V]) search(key K) (path[K, V], bool) {
	p := path[K, V]{idx: make([]*indexNode[K, V], s.height), matchAt: -1}

	found := false
	var curKey K
	var prevIdx *indexNode[K, V]
	curIdx := s.headIdx[s.height-1]

	for i := s.height - 1; i >= 0; {
		for {
			prevIdx = curIdx
			curIdx = curIdx.next
			if curIdx == s.tailIdx {
				break
			}
			curKey = *curIdx.root.key
			if !s.less(curKey, key) {
				break
			}
		}

		if !found && curIdx != s.tailIdx && !s.less(key, curKey) {
			p.matchAt = i
			found = true
		}

		p.idx[i] = prevIdx
		i--
		if i >= 0 {
			curIdx = prevIdx.down.(*indexNode[K, V])
		}
	}

	var prev *dataNode[K, V]
	cur := prevIdx.down.(*dataNode[K, V])

	for {
		prev = cur
		cur = cur.next
		if cur == s.tail {
			break
		}
		if !s.less(*cur.key, key) {
			break
		}
	}
	p.data = prev

	matched := found || (cur != s.tail && !s.less(key, *cur.key))
	return p, matched
}
