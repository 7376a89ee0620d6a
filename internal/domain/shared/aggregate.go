package shared

// BaseAggregateRoot extends BaseEntity with the version counter used for
// optimistic locking. Every mutation increments it so a stale writer's
// save is rejected instead of clobbering a newer record.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
}

// IncrementVersion advances the optimistic-lock version
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// NewBaseAggregateRoot creates a new aggregate root at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}
