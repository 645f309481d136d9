package playback

import (
	"sort"
	"strings"
)

// Rendition is one bitrate variant of a video.
type Rendition struct {
	Label       string `json:"label"`
	Height      int    `json:"height"`
	BitrateKbps int    `json:"bitrate_kbps"`
	URL         string `json:"url"`
}

// NetworkClass is a coarse network speed estimate.
type NetworkClass string

const (
	NetworkSlow   NetworkClass = "slow"
	NetworkMedium NetworkClass = "medium"
	NetworkFast   NetworkClass = "fast"
)

// MaxHeight is the tallest rendition the class may play. Zero means no cap.
func (n NetworkClass) MaxHeight() int {
	switch n {
	case NetworkSlow:
		return 480
	case NetworkMedium:
		return 720
	default:
		return 0
	}
}

// Buffer health thresholds in seconds of forward buffer.
const (
	CriticalBuffer = 2.0
	LowBuffer      = 5.0
	HealthyBuffer  = 10.0
)

// SortLadder returns the renditions ordered from lowest to highest.
func SortLadder(ladder []Rendition) []Rendition {
	out := make([]Rendition, len(ladder))
	copy(out, ladder)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Height == out[j].Height {
			return out[i].BitrateKbps < out[j].BitrateKbps
		}
		return out[i].Height < out[j].Height
	})
	return out
}

// ladderIndex finds current in a sorted ladder, falling back to the highest
// rendition not above it. ok is false when every rendition is taller than
// current.
func ladderIndex(ladder []Rendition, current Rendition) (idx int, ok bool) {
	for i, r := range ladder {
		if r.Height == current.Height && (current.URL == "" || r.URL == current.URL) {
			return i, true
		}
		if r.Height <= current.Height {
			idx, ok = i, true
		}
	}
	return idx, ok
}

// BestForNetwork returns the highest rendition the network class allows, or
// the lowest rendition when every rendition exceeds the cap.
func BestForNetwork(ladder []Rendition, network NetworkClass) (Rendition, bool) {
	sorted := SortLadder(ladder)
	if len(sorted) == 0 {
		return Rendition{}, false
	}
	limit := network.MaxHeight()
	best := sorted[0]
	for _, r := range sorted {
		if limit == 0 || r.Height <= limit {
			best = r
		}
	}
	return best, true
}

// SelectQuality picks the next rendition from the buffer health and network
// class:
//
//	buffer < 2s       lowest rendition below current
//	2s <= buffer < 5s one level down
//	5s <= buffer < 10s hold, one level up on a fast network
//	buffer >= 10s     best rendition the network class allows
//
// An empty ladder returns current unchanged. When current sits below the
// whole ladder, only the fast-network and healthy-buffer branches move it.
func SelectQuality(buffer float64, current Rendition, network NetworkClass, ladder []Rendition) Rendition {
	sorted := SortLadder(ladder)
	if len(sorted) == 0 {
		return current
	}
	idx, ok := ladderIndex(sorted, current)
	if !ok && buffer < HealthyBuffer {
		if buffer >= LowBuffer && network == NetworkFast {
			return sorted[0]
		}
		return current
	}

	switch {
	case buffer < CriticalBuffer:
		if idx > 0 {
			return sorted[0]
		}
	case buffer < LowBuffer:
		if idx > 0 {
			return sorted[idx-1]
		}
	case buffer < HealthyBuffer:
		if network == NetworkFast && idx < len(sorted)-1 {
			return sorted[idx+1]
		}
	default:
		best, _ := BestForNetwork(sorted, network)
		return best
	}
	return sorted[idx]
}

// NetworkInfo carries Network Information API readings. A nil value or an
// empty reading means the API was unavailable.
type NetworkInfo struct {
	EffectiveType string  `json:"effective_type"`
	DownlinkMbps  float64 `json:"downlink_mbps"`
}

// DeviceInfo carries the device capability readings used when network
// information is missing.
type DeviceInfo struct {
	MemoryGB float64 `json:"memory_gb"`
	Cores    int     `json:"cores"`
}

// ClassifyNetwork derives a network class from network readings, falling
// back to a device capability heuristic.
func ClassifyNetwork(info *NetworkInfo, device DeviceInfo) NetworkClass {
	if info != nil {
		switch strings.ToLower(info.EffectiveType) {
		case "slow-2g", "2g":
			return NetworkSlow
		case "3g":
			if info.DownlinkMbps > 0 && info.DownlinkMbps < 1 {
				return NetworkSlow
			}
			return NetworkMedium
		case "4g":
			if info.DownlinkMbps > 0 && info.DownlinkMbps < 5 {
				return NetworkMedium
			}
			return NetworkFast
		case "":
			if info.DownlinkMbps > 0 {
				return classifyDownlink(info.DownlinkMbps)
			}
		}
	}
	return classifyDevice(device)
}

func classifyDownlink(mbps float64) NetworkClass {
	switch {
	case mbps >= 5:
		return NetworkFast
	case mbps >= 1:
		return NetworkMedium
	default:
		return NetworkSlow
	}
}

func classifyDevice(d DeviceInfo) NetworkClass {
	switch {
	case d.MemoryGB >= 8 && d.Cores >= 8:
		return NetworkFast
	case d.MemoryGB >= 4 && d.Cores >= 4:
		return NetworkMedium
	default:
		return NetworkSlow
	}
}
