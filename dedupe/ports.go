package dedupe

import "context"

// ObjectSource enumerates translatable types and their objects.
type ObjectSource interface {
	ListTypes(ctx context.Context) ([]ObjectType, error)
	FetchObjects(ctx context.Context, t ObjectType) ([]Object, error)
}

// ObjectWriter reads the current owner-level representation of an object and
// persists an updated one.
type ObjectWriter interface {
	FetchFresh(ctx context.Context, t ObjectType, id string) (*FullObject, error)
	WriteBack(ctx context.Context, t ObjectType, id string, obj *FullObject) error
}

// Presenter receives observational callbacks. Nothing it returns is consumed.
type Presenter interface {
	NotifyProgress(fraction float64)
	NotifySummary(s Summary)
	RenderState(groups []DuplicateGroup, included map[string]bool)
}
