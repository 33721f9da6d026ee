package leads

// Stats summarizes a page of leads for the reporting endpoint.
type Stats struct {
	Total      int            `json:"total"`
	WithUTM    int            `json:"withUTM"`
	WithoutUTM int            `json:"withoutUTM"`
	BySource   map[string]int `json:"bySource"`
	ByDevice   map[string]int `json:"byDevice"`
}

// ComputeStats counts UTM presence, utm_source (or "direct") and device type
// (or "unknown").
func ComputeStats(leads []*Lead) Stats {
	stats := Stats{
		Total:    len(leads),
		BySource: map[string]int{},
		ByDevice: map[string]int{},
	}
	for _, lead := range leads {
		source := "direct"
		if lead.UTMSource != nil && *lead.UTMSource != "" {
			stats.WithUTM++
			source = *lead.UTMSource
		} else {
			stats.WithoutUTM++
		}
		stats.BySource[source]++

		device := "unknown"
		if lead.DeviceType != nil && *lead.DeviceType != "" {
			device = *lead.DeviceType
		}
		stats.ByDevice[device]++
	}
	return stats
}
