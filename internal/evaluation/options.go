package evaluation

type evalOptions struct {
	batchSize         int
	sliceSize         int
	restrictEntities  []int
	restrictRelations []int
	memoryIntense     bool
	sizeProbing       bool
}

// Option configures a single Evaluate call.
type Option func(*evalOptions)

// WithBatchSize sets the number of triples scored per batch. Defaults to 1.
func WithBatchSize(n int) Option {
	return func(o *evalOptions) {
		o.batchSize = n
	}
}

// WithSliceSize forwards an entity-dimension slice size to the scorer. Zero
// means no slicing.
func WithSliceSize(n int) Option {
	return func(o *evalOptions) {
		o.sliceSize = n
	}
}

// WithRestrictEntities restricts evaluation to triples whose head and tail
// both lie in the given entity IDs. Ranking is computed against the
// restricted candidate columns only.
func WithRestrictEntities(ids []int) Option {
	return func(o *evalOptions) {
		o.restrictEntities = ids
	}
}

// WithRestrictRelations restricts evaluation to triples whose relation lies
// in the given relation IDs.
func WithRestrictRelations(ids []int) Option {
	return func(o *evalOptions) {
		o.restrictRelations = ids
	}
}

// WithMemoryIntenseFiltering selects the faster, more allocation-heavy
// variant of the triple-restriction mask. Only relevant when restricting
// entities or relations.
func WithMemoryIntenseFiltering() Option {
	return func(o *evalOptions) {
		o.memoryIntense = true
	}
}

// withSizeProbing stops the loop after the second batch; used by the size
// controller to test the memory footprint without a full pass.
func withSizeProbing() Option {
	return func(o *evalOptions) {
		o.sizeProbing = true
	}
}
