package mapping

// Snapshot is a deep copy of the records taken when a pass starts. It is the
// reference the classification diffs against.
type Snapshot struct {
	Categories map[int]Category
	Folders    map[int]Folder
	Articles   map[int]Article
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Categories: map[int]Category{},
		Folders:    map[int]Folder{},
		Articles:   map[int]Article{},
	}
}

func (s *Store) takeSnapshot() *Snapshot {
	snap := emptySnapshot()
	for id, c := range s.Categories.rows {
		cp := *c
		cp.Entry = c.Entry.clone()
		snap.Categories[id] = cp
	}
	for id, f := range s.Folders.rows {
		cp := *f
		cp.Entry = f.Entry.clone()
		snap.Folders[id] = cp
	}
	for id, a := range s.Articles.rows {
		cp := *a
		cp.Entry = a.Entry.clone()
		snap.Articles[id] = cp
	}
	return snap
}

// Has reports whether the entity existed when the pass started.
func (s *Snapshot) Has(key Key) bool {
	switch key.Kind {
	case KindCategory:
		_, ok := s.Categories[key.ID]
		return ok
	case KindFolder:
		_, ok := s.Folders[key.ID]
		return ok
	case KindArticle:
		_, ok := s.Articles[key.ID]
		return ok
	default:
		return false
	}
}

// Differs reports whether the tracked fields of the live record (title,
// parent, content hash) moved away from the snapshot. The rendered body and
// the remote reference are derived fields and never compared.
func (s *Snapshot) Differs(store *Store, key Key) bool {
	switch key.Kind {
	case KindCategory:
		before, ok := s.Categories[key.ID]
		now, live := store.Categories.Get(key.ID)
		return !ok || !live || before.Title != now.Title
	case KindFolder:
		before, ok := s.Folders[key.ID]
		now, live := store.Folders.Get(key.ID)
		return !ok || !live || before.Title != now.Title || before.Category != now.Category
	case KindArticle:
		before, ok := s.Articles[key.ID]
		now, live := store.Articles.Get(key.ID)
		return !ok || !live ||
			before.Title != now.Title ||
			before.Folder != now.Folder ||
			before.ContentHash != now.ContentHash
	default:
		return false
	}
}
