package tagging

// A VictimFinder decides which way of a full set should be replaced.
type VictimFinder interface {
	FindVictim(set *Set) (wayID int)
}

// LRUVictimFinder evicts the block with the oldest access time. Ties go to the
// lowest way.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns exactly one way. Invalid blocks are preferred over valid
// ones.
func (e *LRUVictimFinder) FindVictim(set *Set) (wayID int) {
	for i, block := range set.Blocks {
		if !block.Valid {
			return i
		}
	}

	wayID = 0
	for i := 1; i < len(set.Blocks); i++ {
		if set.Blocks[i].LastAccess < set.Blocks[wayID].LastAccess {
			wayID = i
		}
	}

	return wayID
}
