package filetree

import "strings"

// ComputeVisibility decides what is shown for forest f.
//
// An empty query applies pagination: per client, top-level entries at index
// >= K (in display order) are hidden with their whole subtree unless the
// client was revealed, and "show more" is offered only while something is
// hidden that way.
//
// A non-empty query replaces pagination entirely. Every node starts hidden;
// each node whose own name contains the query (case-insensitively) is shown
// together with all of its ancestors, which are also forced open. A matching
// folder additionally shows its whole subtree. "Show more" is never offered
// while searching.
//
// The result is a complete state built in one pass; the inputs are not
// modified.
func ComputeVisibility(f *Forest, p *Pagination, query string) VisibilityState {
	if query == "" {
		return paginate(f, p)
	}
	return search(f, query)
}

func paginate(f *Forest, p *Pagination) VisibilityState {
	vs := newVisibilityState("")
	k := p.PageSize()
	for _, clientID := range f.ClientIDs() {
		top := f.Client(clientID).TopLevel()
		if len(top) <= k || p.Revealed(clientID) {
			continue
		}
		vs.showMore[clientID] = true
		for _, root := range top[k:] {
			root.walk(func(n *Node) bool {
				vs.hidden[n.ID] = HiddenByPagination
				return true
			})
		}
	}
	return vs
}

func search(f *Forest, query string) VisibilityState {
	vs := newVisibilityState(query)
	needle := strings.ToLower(query)

	var matches []*Node
	f.Walk(func(n *Node) bool {
		vs.hidden[n.ID] = HiddenBySearch
		if strings.Contains(strings.ToLower(n.Name), needle) {
			matches = append(matches, n)
		}
		return true
	})

	for _, n := range matches {
		delete(vs.hidden, n.ID)
		for a := n.Parent; a != nil; a = a.Parent {
			delete(vs.hidden, a.ID)
			vs.forcedOpen[a.ID] = true
		}
		if n.IsFolder() {
			n.walk(func(d *Node) bool {
				delete(vs.hidden, d.ID)
				return true
			})
		}
	}
	return vs
}

// Matches reports whether name matches query under the search rules.
func Matches(name, query string) bool {
	return query != "" && strings.Contains(strings.ToLower(name), strings.ToLower(query))
}
