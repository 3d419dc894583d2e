// Package docname parses and formats the names of content tree nodes.
//
// A node that has been assigned an identifier carries it at the end of its
// name: "Networking--DOCID3" for a directory, "Install--DOCID7.md" for an
// article file. Names without the marker are not identified yet.
package docname

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fclairamb/docmap/internal/apperrors"
)

// Marker separates a node title from its embedded identifier.
const Marker = "--DOCID"

const markdownExt = ".md"

// Name is the parsed form of a node name.
type Name struct {
	Title      string // Title without marker nor extension
	ID         int    // Embedded identifier, zero when not identified
	Identified bool   // True when the name carries a valid marker
	Ext        string // Original markdown extension, kept verbatim (".md", ".MD"...)
}

// WithID returns the name identified by id, keeping title and extension.
func (n Name) WithID(id int) Name {
	n.ID = id
	n.Identified = true
	return n
}

// String formats the name back into a filesystem node name.
func (n Name) String() string {
	if !n.Identified {
		return n.Title + n.Ext
	}
	return n.Title + Marker + strconv.Itoa(n.ID) + n.Ext
}

// ParseError reports a name carrying the marker without a usable identifier.
type ParseError struct {
	Name   string
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse name %q: %s", e.Name, e.Reason)
}

// Unwrap lets errors.Is match apperrors.ErrParse.
func (e *ParseError) Unwrap() error {
	return apperrors.ErrParse
}

// ParseDir parses a category or folder directory name.
func ParseDir(name string) (Name, error) {
	return parse(name, name, "")
}

// ParseFile parses an article file name. A case-insensitive ".md" suffix is
// stripped into Ext before looking for the marker.
func ParseFile(name string) (Name, error) {
	base, ext := splitMarkdownExt(name)
	return parse(name, base, ext)
}

// IsMarkdown reports whether a file name has a markdown extension.
func IsMarkdown(name string) bool {
	_, ext := splitMarkdownExt(name)
	return ext != ""
}

// IsHidden reports whether a node is a dot entry (".git", ".gitkeep"...).
// Hidden nodes are never part of the content tree.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func splitMarkdownExt(name string) (string, string) {
	ext := filepath.Ext(name)
	if len(ext) == len(name) || !strings.EqualFold(ext, markdownExt) {
		return name, ""
	}
	return name[:len(name)-len(ext)], ext
}

// parse looks for the last marker occurrence, so titles may contain "--DOCID" themselves.
func parse(raw, base, ext string) (Name, error) {
	idx := strings.LastIndex(base, Marker)
	if idx < 0 {
		return Name{Title: base, Ext: ext}, nil
	}

	digits := base[idx+len(Marker):]
	if digits == "" {
		return Name{}, &ParseError{Name: raw, Reason: "missing identifier after marker"}
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return Name{}, &ParseError{Name: raw, Reason: fmt.Sprintf("non-numeric identifier %q", digits)}
		}
	}

	id, err := strconv.Atoi(digits)
	if err != nil {
		return Name{}, &ParseError{Name: raw, Reason: "identifier out of range"}
	}
	if id == 0 {
		return Name{}, &ParseError{Name: raw, Reason: "identifier must be positive"}
	}

	return Name{Title: base[:idx], ID: id, Identified: true, Ext: ext}, nil
}

// Depth returns how many path elements separate path from root: 1 for a
// category, 2 for a folder, 3 for an article. It returns 0 when path is root
// and -1 when path is outside root.
func Depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return -1
	}
	if rel == "." {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}
