package quadtree

type DebugInfo struct {
	Bounds        Region `json:"bounds"`
	Size          int    `json:"size"`
	NodeCapacity  int    `json:"node_capacity"`
	MaxDepth      int    `json:"max_depth"`
	NodeCount     int    `json:"node_count"`
	LeafCount     int    `json:"leaf_count"`
	MaxLevel      int    `json:"max_level"`
	MaxOccupancy  int    `json:"max_occupancy"`
	OverflowCount int    `json:"overflow_count"`
}

// DebugInfo summarizes the shape of the tree. OverflowCount is the number of
// nodes holding more values than the node capacity, which only happens at the
// maximum depth.
func (t *Tree[T]) DebugInfo() DebugInfo {
	info := DebugInfo{
		Bounds:       t.Bounds(),
		Size:         t.size,
		NodeCapacity: t.nodeCapacity,
		MaxDepth:     t.maxDepth,
		NodeCount:    len(t.nodes),
	}

	for i := range t.nodes {
		n := &t.nodes[i]
		if !n.split {
			info.LeafCount++
		}
		if n.level > info.MaxLevel {
			info.MaxLevel = n.level
		}
		if len(n.values) > info.MaxOccupancy {
			info.MaxOccupancy = len(n.values)
		}
		if len(n.values) > t.nodeCapacity {
			info.OverflowCount++
		}
	}

	return info
}
