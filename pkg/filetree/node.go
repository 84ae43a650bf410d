// Package filetree is the view-model behind the uploads dashboard: a forest
// of per-client file trees, the pagination and search rules that decide which
// nodes are shown, and the folder expansion set that survives both.
//
// Nothing in this package performs I/O or returns errors. Malformed input
// degrades to rendering less.
package filetree

import (
	"sort"
	"strings"
)

// Kind distinguishes files from folders.
type Kind uint8

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// idSep joins the segments of a node identity.
const idSep = "/"

// Node is one file or folder. Nodes are rebuilt on every refresh and must not
// be retained across Dashboard.Refresh calls; use ID instead.
type Node struct {
	// ID is the path-qualified identity: <clientID>/<name>/<name>/...
	ID   string
	Name string
	Kind Kind
	// Path is the server-relative file path used for file actions. Empty for
	// folders.
	Path     string
	Children map[string]*Node
	Parent   *Node
	// Depth is 0 for top-level entries.
	Depth int
	// ClientID is the owning client.
	ClientID string
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n != nil && n.Kind == KindFolder }

// SortedChildren returns the node's children in ascending name order.
func (n *Node) SortedChildren() []*Node {
	if n == nil || len(n.Children) == 0 {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Ancestors returns the node's ancestors from the top-level entry down to the
// direct parent.
func (n *Node) Ancestors() []*Node {
	var out []*Node
	for p := n.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// walk visits n and its descendants in pre-order; sibling order is
// unspecified. Returning false from fn skips the node's subtree.
func (n *Node) walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn)
	}
}

// ClientTree is one client's labelled tree.
type ClientTree struct {
	ID    string
	Label string
	Roots map[string]*Node
}

// Empty reports whether the client has no entries at all.
func (c *ClientTree) Empty() bool { return c == nil || len(c.Roots) == 0 }

// TopLevel returns the top-level entries in descending name order, so
// date-stamped folders list most recent first.
func (c *ClientTree) TopLevel() []*Node {
	if c.Empty() {
		return nil
	}
	out := make([]*Node, 0, len(c.Roots))
	for _, n := range c.Roots {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out
}

// Forest maps client ids to their trees.
type Forest struct {
	clients map[string]*ClientTree
	index   map[string]*Node
	order   []string
}

func newForest() *Forest {
	return &Forest{
		clients: make(map[string]*ClientTree),
		index:   make(map[string]*Node),
	}
}

// Len returns the number of clients.
func (f *Forest) Len() int {
	if f == nil {
		return 0
	}
	return len(f.clients)
}

// ClientIDs returns client ids ordered by label (case-insensitive), then id.
func (f *Forest) ClientIDs() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Client returns the tree for id, or nil.
func (f *Forest) Client(id string) *ClientTree {
	if f == nil {
		return nil
	}
	return f.clients[id]
}

// Lookup finds a node by identity.
func (f *Forest) Lookup(id string) (*Node, bool) {
	if f == nil {
		return nil, false
	}
	n, ok := f.index[id]
	return n, ok
}

// NodeCount returns the number of files and folders across all clients.
func (f *Forest) NodeCount() int {
	if f == nil {
		return 0
	}
	return len(f.index)
}

// Walk visits every node of every client in pre-order. Clients and top-level
// entries are visited in display order; deeper siblings in unspecified order.
func (f *Forest) Walk(fn func(*Node) bool) {
	if f == nil {
		return
	}
	for _, id := range f.order {
		for _, root := range f.clients[id].TopLevel() {
			root.walk(fn)
		}
	}
}

func (f *Forest) sortClients() {
	f.order = f.order[:0]
	for id := range f.clients {
		f.order = append(f.order, id)
	}
	sort.Slice(f.order, func(i, j int) bool {
		a, b := f.clients[f.order[i]], f.clients[f.order[j]]
		la, lb := strings.ToLower(a.Label), strings.ToLower(b.Label)
		if la != lb {
			return la < lb
		}
		return a.ID < b.ID
	})
}

func childID(parentID, name string) string {
	return parentID + idSep + name
}
