package filetree

import (
	"strings"

	"github.com/vanderheijden86/dropdash/pkg/debug"
	"github.com/vanderheijden86/dropdash/pkg/model"
)

// BuildOption configures BuildForest.
type BuildOption func(*buildOptions)

type buildOptions struct {
	maxDepth int
}

// WithMaxDepth caps the number of tree levels kept per client. Folders on the
// last kept level are retained with their children dropped. n <= 0 means no
// ceiling.
func WithMaxDepth(n int) BuildOption {
	return func(o *buildOptions) {
		o.maxDepth = n
	}
}

// DefaultLabel is the label shown for a client the server has no label for.
func DefaultLabel(clientID string) string {
	short := clientID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Client " + short
}

// BuildForest converts the server's per-client nested mapping into a Forest.
//
// Entries whose type is neither "file" nor "folder" are skipped. A folder
// without children becomes an empty folder. The input is assumed acyclic, as
// it is derived from a filesystem; WithMaxDepth bounds recursion for
// malformed data. Client ids and entry names containing "/" are skipped,
// since they would collide with nested identities. No ordering is applied
// here.
func BuildForest(raw map[string]model.ClientGroup, opts ...BuildOption) *Forest {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	f := newForest()
	for clientID, group := range raw {
		if strings.Contains(clientID, idSep) {
			debug.Log("filetree: skipping client %q: id contains %q", clientID, idSep)
			continue
		}
		label := group.Label
		if label == "" {
			label = DefaultLabel(clientID)
		}
		ct := &ClientTree{
			ID:    clientID,
			Label: label,
			Roots: buildChildren(f, clientID, clientID, nil, group.Tree, 0, o),
		}
		f.clients[clientID] = ct
	}
	f.sortClients()

	debug.Log("filetree: built forest with %d clients, %d nodes", len(f.clients), len(f.index))
	return f
}

func buildChildren(f *Forest, clientID, parentID string, parent *Node, raw map[string]model.RawNode, depth int, o buildOptions) map[string]*Node {
	if len(raw) == 0 {
		return nil
	}
	if o.maxDepth > 0 && depth >= o.maxDepth {
		debug.Log("filetree: depth ceiling %d reached under %s, dropping %d entries", o.maxDepth, parentID, len(raw))
		return nil
	}

	out := make(map[string]*Node, len(raw))
	for name, entry := range raw {
		if strings.Contains(name, idSep) {
			debug.Log("filetree: skipping %q under %s: name contains %q", name, parentID, idSep)
			continue
		}
		var kind Kind
		switch {
		case entry.IsFile():
			kind = KindFile
		case entry.IsFolder():
			kind = KindFolder
		default:
			debug.Log("filetree: skipping %q under %s: unknown type %q", name, parentID, entry.Type)
			continue
		}

		n := &Node{
			ID:       childID(parentID, name),
			Name:     name,
			Kind:     kind,
			Parent:   parent,
			Depth:    depth,
			ClientID: clientID,
		}
		if kind == KindFile {
			n.Path = entry.Path
		} else {
			n.Children = buildChildren(f, clientID, n.ID, n, entry.Children, depth+1, o)
		}
		out[name] = n
		f.index[n.ID] = n
	}
	return out
}
