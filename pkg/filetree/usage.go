package filetree

import (
	"sort"

	"github.com/vanderheijden86/dropdash/pkg/model"
)

// Usage is the storage and upload summary for a forest.
type Usage struct {
	Files   int           `json:"files"`
	Bytes   int64         `json:"bytes"`
	Limit   int64         `json:"limit_bytes"`
	Percent float64       `json:"percent"`
	Days    []DayCount    `json:"uploads_by_day"`
	Top     []ClientCount `json:"top_clients"`
	Clients int           `json:"clients"`
}

// Warn reports whether usage is strictly above warnPercent of a known limit.
func (u Usage) Warn(warnPercent float64) bool {
	return u.Limit > 0 && u.Percent > warnPercent
}

// ComputeUsage combines server analytics, when the source provides them, with
// statistics computed from f. limit is used when analytics are missing or
// carry no limit.
func ComputeUsage(f *Forest, a *model.Analytics, limit int64) Usage {
	st := ComputeStats(f, DefaultTopClients)
	u := Usage{
		Files:   st.Files,
		Top:     st.TopClients,
		Clients: st.Clients,
		Limit:   limit,
		Days:    UploadsByDay(f),
	}
	if a == nil {
		return u
	}

	u.Files = a.TotalFiles
	u.Bytes = a.TotalSizeBytes
	if a.StorageLimitBytes > 0 {
		u.Limit = a.StorageLimitBytes
	}
	u.Percent = a.StorageUsagePercent
	if u.Percent == 0 && u.Limit > 0 {
		u.Percent = float64(u.Bytes) / float64(u.Limit) * 100
	}
	if len(a.UploadsByDay) > 0 {
		u.Days = make([]DayCount, 0, len(a.UploadsByDay))
		for day, n := range a.UploadsByDay {
			u.Days = append(u.Days, DayCount{Day: day, Files: n})
		}
		sort.Slice(u.Days, func(i, j int) bool { return u.Days[i].Day < u.Days[j].Day })
	}
	return u
}
