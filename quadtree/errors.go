package quadtree

const (
	// A region with a negative extent, or a tree domain with a zero extent.
	ErrTypeInvalidRegion = "invalid_region"

	// A value whose coordinates lie outside the tree domain.
	ErrTypeOutOfBounds = "out_of_bounds"

	// A value matched no child of a subdivided node. Children are expected
	// to cover their parent entirely, so this means the split and
	// containment math disagree.
	ErrTypeIndexCorruption = "index_corruption"
)
