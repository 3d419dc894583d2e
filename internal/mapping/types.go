// Package mapping holds the persisted identifier mapping between the content
// tree and the remote knowledge base: one record table per entity kind plus
// the per-kind identifier counters.
package mapping

import "fmt"

// Kind is one of the three levels of the content hierarchy.
type Kind int

// Entity kinds, ordered parent first.
const (
	KindCategory Kind = iota + 1
	KindFolder
	KindArticle
)

// Kinds lists every kind in parent-before-child order.
var Kinds = []Kind{KindCategory, KindFolder, KindArticle}

// String returns the kind name used in logs, errors and counter keys.
func (k Kind) String() string {
	switch k {
	case KindCategory:
		return "category"
	case KindFolder:
		return "folder"
	case KindArticle:
		return "article"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Parent returns the kind of the parent level, zero for categories.
func (k Kind) Parent() Kind {
	switch k {
	case KindFolder:
		return KindCategory
	case KindArticle:
		return KindFolder
	default:
		return 0
	}
}

// KindAtDepth maps a tree depth below the content root to an entity kind.
func KindAtDepth(depth int) (Kind, bool) {
	switch depth {
	case 1:
		return KindCategory, true
	case 2: //nolint:mnd // folder depth
		return KindFolder, true
	case 3: //nolint:mnd // article depth
		return KindArticle, true
	default:
		return 0, false
	}
}

// Key identifies one entity across kinds.
type Key struct {
	Kind Kind
	ID   int
}

// String formats the key as "folder 3".
func (k Key) String() string {
	return fmt.Sprintf("%s %d", k.Kind, k.ID)
}

// RemoteRef is what the remote system returned once an entity was pushed.
// The reconciliation never interprets it; its absence means "not synchronized yet".
type RemoteRef struct {
	ID         int64  `yaml:"id"`
	CategoryID int64  `yaml:"category_id,omitempty"`
	FolderID   int64  `yaml:"folder_id,omitempty"`
	URL        string `yaml:"url,omitempty"`
}

// Entry holds the fields shared by every kind.
type Entry struct {
	Title string `yaml:"title"`
	// Remote is nil until the remote system confirmed a creation.
	Remote *RemoteRef `yaml:"remote,omitempty"`
	// RemoteStale is set when a remote update failed and must be retried.
	RemoteStale bool `yaml:"remote_stale,omitempty"`
	// Unlinked is set on insertion and cleared the first time a pass finds
	// the entity in place under its parent.
	Unlinked bool `yaml:"unlinked,omitempty"`
}

// Category is a depth-1 directory.
type Category struct {
	Entry `yaml:",inline"`
}

// Folder is a depth-2 directory.
type Folder struct {
	Entry    `yaml:",inline"`
	Category int `yaml:"parent"`
}

// Article is a markdown file inside a folder.
type Article struct {
	Entry        `yaml:",inline"`
	Folder       int    `yaml:"parent"`
	ContentHash  string `yaml:"sha1,omitempty"`
	RenderedBody string `yaml:"html,omitempty"`
}

// Counters holds the last identifier issued per kind.
type Counters struct {
	Category int `yaml:"category"`
	Folder   int `yaml:"folder"`
	Article  int `yaml:"article"`
}

func (c *Counters) of(kind Kind) *int {
	switch kind {
	case KindCategory:
		return &c.Category
	case KindFolder:
		return &c.Folder
	case KindArticle:
		return &c.Article
	default:
		panic(fmt.Sprintf("mapping: unknown kind %d", int(kind)))
	}
}

// Last returns the last identifier issued for kind.
func (c *Counters) Last(kind Kind) int {
	return *c.of(kind)
}

func cloneRemote(ref *RemoteRef) *RemoteRef {
	if ref == nil {
		return nil
	}
	cp := *ref
	return &cp
}

func (e Entry) clone() Entry {
	e.Remote = cloneRemote(e.Remote)
	return e
}
