package persona

// Store is the persona catalog the development backend serves and gates
// login-only answers on.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	// RequiresLogin reports whether answers for id are withheld until the
	// session logs in. Unknown ids are not gated.
	RequiresLogin(id string) bool
}

// MemoryStore keeps personas in seed order with an id index.
type MemoryStore struct {
	items []Persona
	byID  map[string]int
}

// NewMemoryStore indexes items by id. A later entry with a duplicate id
// replaces the earlier one in lookups but both stay listed.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{
		items: append([]Persona(nil), items...),
		byID:  make(map[string]int, len(items)),
	}
	for i, p := range s.items {
		s.byID[p.ID] = i
	}
	return s
}

func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Persona{}, false
	}
	return s.items[i], true
}

func (s *MemoryStore) RequiresLogin(id string) bool {
	p, ok := s.FindByID(id)
	return ok && p.LoginRequired
}
