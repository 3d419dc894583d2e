package sync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fclairamb/docmap/internal/docname"
	"github.com/fclairamb/docmap/internal/mapping"
)

// node is one category, folder or article met during a tree walk.
type node struct {
	kind    mapping.Kind
	path    string
	name    docname.Name
	err     error // name could not be parsed
	readErr error // directory entries could not be listed
	parent  *node

	// skip excludes the node and its subtree from the current phase.
	skip bool
	// skipCause, when set, is reported for each identified child of a skipped node.
	skipCause error
}

func (n *node) key() mapping.Key {
	return mapping.Key{Kind: n.kind, ID: n.name.ID}
}

// walkTree lists the content nodes below root, parents before children and
// siblings in name order, so identifier allocation is deterministic.
// Dot entries, non-markdown files and anything deeper than an article are ignored.
func walkTree(root string) ([]*node, error) {
	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("read content root: %w", err)
	}

	var nodes []*node
	var visit func(dir string, depth int, parent *node)
	visit = func(dir string, depth int, parent *node) {
		kind, ok := mapping.KindAtDepth(depth)
		if !ok {
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if parent != nil {
				parent.readErr = err
			}
			return
		}

		for _, entry := range entries {
			name := entry.Name()
			if docname.IsHidden(name) {
				continue
			}
			path := filepath.Join(dir, name)

			if kind == mapping.KindArticle {
				if !entry.Type().IsRegular() || !docname.IsMarkdown(name) {
					continue
				}
				parsed, parseErr := docname.ParseFile(name)
				nodes = append(nodes, &node{kind: kind, path: path, name: parsed, err: parseErr, parent: parent})
				continue
			}

			if !entry.IsDir() {
				continue
			}
			parsed, parseErr := docname.ParseDir(name)
			n := &node{kind: kind, path: path, name: parsed, err: parseErr, parent: parent}
			nodes = append(nodes, n)
			visit(path, depth+1, n)
		}
	}

	visit(root, 1, nil)
	return nodes, nil
}
