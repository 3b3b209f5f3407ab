package build

// Store exposes build lookup for handlers.
type Store interface {
	List() []Build
	FindByID(id string) (Build, bool)
}

// MemoryStore implements Store over a fixed slice.
type MemoryStore struct {
	items []Build
}

// NewMemoryStore returns a MemoryStore preloaded with items.
func NewMemoryStore(items []Build) *MemoryStore {
	return &MemoryStore{items: append([]Build(nil), items...)}
}

// List returns every build.
func (s *MemoryStore) List() []Build {
	return append([]Build(nil), s.items...)
}

// FindByID looks up a build by identifier.
func (s *MemoryStore) FindByID(id string) (Build, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Build{}, false
}
