package filetree

import (
	"sort"
	"time"
)

// CountFiles returns the number of files in n's subtree, n included.
func CountFiles(n *Node) int {
	count := 0
	n.walk(func(d *Node) bool {
		if !d.IsFolder() {
			count++
		}
		return true
	})
	return count
}

// FileCount returns the number of files the client has.
func (c *ClientTree) FileCount() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, root := range c.Roots {
		total += CountFiles(root)
	}
	return total
}

// ClientCount is a client's file total.
type ClientCount struct {
	ClientID string `json:"client_id"`
	Label    string `json:"label"`
	Files    int    `json:"files"`
}

// Stats summarizes a forest.
type Stats struct {
	Clients    int           `json:"clients"`
	Files      int           `json:"files"`
	TopClients []ClientCount `json:"top_clients"`
}

// DefaultTopClients is how many clients ComputeStats ranks by default.
const DefaultTopClients = 5

// ComputeStats totals files per client and ranks the top n clients by file
// count (descending, ties by id). n <= 0 selects DefaultTopClients.
func ComputeStats(f *Forest, n int) Stats {
	if n <= 0 {
		n = DefaultTopClients
	}
	st := Stats{Clients: f.Len()}
	counts := make([]ClientCount, 0, f.Len())
	for _, id := range f.ClientIDs() {
		ct := f.Client(id)
		c := ClientCount{ClientID: id, Label: ct.Label, Files: ct.FileCount()}
		st.Files += c.Files
		counts = append(counts, c)
	}
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Files != counts[j].Files {
			return counts[i].Files > counts[j].Files
		}
		return counts[i].ClientID < counts[j].ClientID
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	st.TopClients = counts
	return st
}

// DayLayout is the folder naming scheme uploads are grouped by.
const DayLayout = "2006-01-02"

// DayCount is the number of files uploaded on one day.
type DayCount struct {
	Day   string `json:"day"`
	Files int    `json:"files"`
}

// IsDay reports whether name is a YYYY-MM-DD folder name.
func IsDay(name string) bool {
	if len(name) != len(DayLayout) {
		return false
	}
	_, err := time.Parse(DayLayout, name)
	return err == nil
}

// UploadsByDay counts files per day across all clients, ascending by day. A
// file is attributed to the outermost date-named folder above it; files with
// no such folder are not counted.
func UploadsByDay(f *Forest) []DayCount {
	byDay := make(map[string]int)
	f.Walk(func(n *Node) bool {
		if n.IsFolder() {
			return true
		}
		for _, a := range n.Ancestors() {
			if IsDay(a.Name) {
				byDay[a.Name]++
				break
			}
		}
		return true
	})

	out := make([]DayCount, 0, len(byDay))
	for day, c := range byDay {
		out = append(out, DayCount{Day: day, Files: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}
