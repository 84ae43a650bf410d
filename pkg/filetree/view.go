package filetree

import "github.com/vanderheijden86/dropdash/pkg/model"

// View is a one-shot rendering request for hosts without an interactive
// session, such as the JSON API and the exporters.
type View struct {
	Query     string
	RevealAll bool
	ExpandAll bool
	// Expanded lists folder identities to open; unknown ones are ignored.
	Expanded []string
}

// RenderView builds a dashboard over raw, applies v and renders it.
func RenderView(raw map[string]model.ClientGroup, opts Options, v View) []Group {
	d := NewDashboard(opts)
	d.Refresh(raw)
	if v.ExpandAll {
		d.ExpandAll()
	}
	for _, id := range v.Expanded {
		if !d.IsExpanded(id) {
			d.Toggle(id)
		}
	}
	if v.RevealAll {
		d.RevealEverything()
	}
	d.SetQuery(v.Query)
	return d.Groups()
}
