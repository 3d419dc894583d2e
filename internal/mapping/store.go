package mapping

// Store is the working copy of the mapping for one pass. Records are mutated
// in place by the reconciliation; the pass bookkeeping (found, created and
// held sets, pass-start snapshot) is never persisted.
type Store struct {
	Categories *Table[Category]
	Folders    *Table[Folder]
	Articles   *Table[Article]
	Counters   Counters

	pass passState
}

type passState struct {
	snapshot *Snapshot
	found    map[Key]bool
	created  map[Key]bool
	held     map[Key]bool
}

// New creates an empty store.
func New() *Store {
	s := &Store{
		Categories: NewTable[Category](),
		Folders:    NewTable[Folder](),
		Articles:   NewTable[Article](),
	}
	s.resetPass()
	return s
}

func (s *Store) resetPass() {
	s.pass = passState{
		found:   make(map[Key]bool),
		created: make(map[Key]bool),
		held:    make(map[Key]bool),
	}
}

// Allocate issues the next identifier for kind. Identifiers are never reused.
func (s *Store) Allocate(kind Kind) int {
	counter := s.Counters.of(kind)
	*counter++
	return *counter
}

// Observe moves the counter of kind forward when an identifier discovered on
// disk is above it, so later allocations never collide with it.
func (s *Store) Observe(kind Kind, id int) {
	if counter := s.Counters.of(kind); id > *counter {
		*counter = id
	}
}

// Has reports whether the record exists.
func (s *Store) Has(key Key) bool {
	switch key.Kind {
	case KindCategory:
		return s.Categories.Has(key.ID)
	case KindFolder:
		return s.Folders.Has(key.ID)
	case KindArticle:
		return s.Articles.Has(key.ID)
	default:
		return false
	}
}

// Entry returns the shared fields of a record, nil when absent.
func (s *Store) Entry(key Key) *Entry {
	switch key.Kind {
	case KindCategory:
		if c, ok := s.Categories.Get(key.ID); ok {
			return &c.Entry
		}
	case KindFolder:
		if f, ok := s.Folders.Get(key.ID); ok {
			return &f.Entry
		}
	case KindArticle:
		if a, ok := s.Articles.Get(key.ID); ok {
			return &a.Entry
		}
	}
	return nil
}

// Insert adds a record carrying only a title.
func (s *Store) Insert(key Key, title string) {
	entry := Entry{Title: title, Unlinked: true}
	switch key.Kind {
	case KindCategory:
		s.Categories.Put(key.ID, &Category{Entry: entry})
	case KindFolder:
		s.Folders.Put(key.ID, &Folder{Entry: entry})
	case KindArticle:
		s.Articles.Put(key.ID, &Article{Entry: entry})
	}
}

// Delete removes a record.
func (s *Store) Delete(key Key) {
	switch key.Kind {
	case KindCategory:
		s.Categories.Delete(key.ID)
	case KindFolder:
		s.Folders.Delete(key.ID)
	case KindArticle:
		s.Articles.Delete(key.ID)
	}
}

// IDs returns the identifiers of kind in ascending order.
func (s *Store) IDs(kind Kind) []int {
	switch kind {
	case KindCategory:
		return s.Categories.IDs()
	case KindFolder:
		return s.Folders.IDs()
	case KindArticle:
		return s.Articles.IDs()
	default:
		return nil
	}
}

// ParentID returns the parent identifier of a folder or article, zero otherwise.
func (s *Store) ParentID(key Key) int {
	switch key.Kind {
	case KindFolder:
		if f, ok := s.Folders.Get(key.ID); ok {
			return f.Category
		}
	case KindArticle:
		if a, ok := s.Articles.Get(key.ID); ok {
			return a.Folder
		}
	}
	return 0
}

// BeginPass clears the transient state and snapshots every record.
func (s *Store) BeginPass() {
	s.resetPass()
	s.pass.snapshot = s.takeSnapshot()
}

// Snapshot returns the state captured by the last BeginPass.
func (s *Store) Snapshot() *Snapshot {
	if s.pass.snapshot == nil {
		return emptySnapshot()
	}
	return s.pass.snapshot
}

// MarkFound records that the entity was seen during this pass's walk.
func (s *Store) MarkFound(key Key) {
	s.pass.found[key] = true
}

// Found reports whether the entity was seen during this pass.
func (s *Store) Found(key Key) bool {
	return s.pass.found[key]
}

// MarkCreated records that the entity was inserted during this pass.
func (s *Store) MarkCreated(key Key) {
	s.pass.created[key] = true
}

// Created reports whether the entity was inserted during this pass.
func (s *Store) Created(key Key) bool {
	return s.pass.created[key]
}

// Hold freezes an entity for this pass: it is restored to its pass-start
// state, kept out of the found-set and must not be inferred as deleted.
func (s *Store) Hold(key Key) {
	s.pass.held[key] = true
	delete(s.pass.found, key)
	s.restore(key)
}

// Held reports whether the entity was held during this pass.
func (s *Store) Held(key Key) bool {
	return s.pass.held[key]
}

func (s *Store) restore(key Key) {
	snap := s.Snapshot()
	switch key.Kind {
	case KindCategory:
		if c, ok := snap.Categories[key.ID]; ok {
			c.Entry = c.Entry.clone()
			s.Categories.Put(key.ID, &c)
		}
	case KindFolder:
		if f, ok := snap.Folders[key.ID]; ok {
			f.Entry = f.Entry.clone()
			s.Folders.Put(key.ID, &f)
		}
	case KindArticle:
		if a, ok := snap.Articles[key.ID]; ok {
			a.Entry = a.Entry.clone()
			s.Articles.Put(key.ID, &a)
		}
	}
}

// PurgeDeleted removes records whose remote deletion was confirmed.
// It must only be called once the remote side acknowledged each key.
func (s *Store) PurgeDeleted(confirmed []Key) int {
	purged := 0
	for _, key := range confirmed {
		if !s.Has(key) {
			continue
		}
		s.Delete(key)
		purged++
	}
	return purged
}

// Len returns the number of records of kind.
func (s *Store) Len(kind Kind) int {
	switch kind {
	case KindCategory:
		return s.Categories.Len()
	case KindFolder:
		return s.Folders.Len()
	case KindArticle:
		return s.Articles.Len()
	default:
		return 0
	}
}
