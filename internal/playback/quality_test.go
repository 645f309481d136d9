package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rendition(height int) Rendition {
	return Rendition{
		Label:       labelFor(height),
		Height:      height,
		BitrateKbps: height * 4,
		URL:         "https://cdn.example.com/v/" + labelFor(height) + ".mp4",
	}
}

func labelFor(height int) string {
	switch height {
	case 240:
		return "240p"
	case 360:
		return "360p"
	case 480:
		return "480p"
	case 720:
		return "720p"
	default:
		return "1080p"
	}
}

// Deliberately unsorted
func testLadder() []Rendition {
	return []Rendition{rendition(720), rendition(240), rendition(1080), rendition(480), rendition(360)}
}

func TestSelectQuality(t *testing.T) {
	tests := []struct {
		name    string
		buffer  float64
		current int
		network NetworkClass
		want    int
	}{
		{"critical buffer drops to lowest", 1.5, 1080, NetworkFast, 240},
		{"critical buffer at lowest holds", 1.5, 240, NetworkFast, 240},
		{"low buffer drops one level", 3, 720, NetworkFast, 480},
		{"low buffer at lowest holds", 3, 240, NetworkSlow, 240},
		{"moderate buffer on fast network raises one level", 7, 480, NetworkFast, 720},
		{"moderate buffer on medium network holds", 7, 480, NetworkMedium, 480},
		{"moderate buffer at top holds", 7, 1080, NetworkFast, 1080},
		{"healthy buffer on slow network caps at 480p", 12, 240, NetworkSlow, 480},
		{"healthy buffer on medium network caps at 720p", 12, 240, NetworkMedium, 720},
		{"healthy buffer on fast network jumps to best", 12, 360, NetworkFast, 1080},
		{"healthy buffer above cap comes down to cap", 12, 1080, NetworkSlow, 480},
		{"buffer boundary at 2s is low, not critical", 2, 1080, NetworkFast, 720},
		{"buffer boundary at 10s is healthy", 10, 480, NetworkMedium, 720},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectQuality(tt.buffer, rendition(tt.current), tt.network, testLadder())
			assert.Equal(t, tt.want, got.Height)
		})
	}
}

func TestSelectQualityCriticalBufferIsStrictlyLower(t *testing.T) {
	for _, ladder := range [][]Rendition{
		testLadder(),
		{rendition(720), rendition(1080)},
		{rendition(1080), rendition(360)},
	} {
		got := SelectQuality(1.5, rendition(1080), NetworkFast, ladder)
		assert.Less(t, got.Height, 1080)
	}
}

func TestSelectQualityCurrentBelowLadder(t *testing.T) {
	ladder := []Rendition{rendition(360), rendition(720)}
	tests := []struct {
		name    string
		buffer  float64
		network NetworkClass
		want    int
	}{
		{"critical buffer holds", 1.5, NetworkSlow, 240},
		{"low buffer holds", 3, NetworkFast, 240},
		{"moderate buffer on medium network holds", 7, NetworkMedium, 240},
		{"moderate buffer on fast network raises to lowest rung", 7, NetworkFast, 360},
		{"healthy buffer moves to network best", 12, NetworkFast, 720},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectQuality(tt.buffer, rendition(240), tt.network, ladder)
			assert.Equal(t, tt.want, got.Height)
		})
	}
}

func TestSelectQualityEmptyLadder(t *testing.T) {
	current := rendition(720)
	assert.Equal(t, current, SelectQuality(0.5, current, NetworkSlow, nil))
}

func TestBestForNetworkAllAboveCap(t *testing.T) {
	best, ok := BestForNetwork([]Rendition{rendition(1080), rendition(720)}, NetworkSlow)
	assert.True(t, ok)
	assert.Equal(t, 720, best.Height)

	_, ok = BestForNetwork(nil, NetworkFast)
	assert.False(t, ok)
}

func TestClassifyNetwork(t *testing.T) {
	tests := []struct {
		name   string
		info   *NetworkInfo
		device DeviceInfo
		want   NetworkClass
	}{
		{"4g without downlink", &NetworkInfo{EffectiveType: "4g"}, DeviceInfo{}, NetworkFast},
		{"4g with weak downlink", &NetworkInfo{EffectiveType: "4g", DownlinkMbps: 2}, DeviceInfo{}, NetworkMedium},
		{"3g", &NetworkInfo{EffectiveType: "3g", DownlinkMbps: 1.5}, DeviceInfo{}, NetworkMedium},
		{"3g with very weak downlink", &NetworkInfo{EffectiveType: "3g", DownlinkMbps: 0.4}, DeviceInfo{}, NetworkSlow},
		{"2g", &NetworkInfo{EffectiveType: "2g"}, DeviceInfo{MemoryGB: 16, Cores: 16}, NetworkSlow},
		{"slow-2g", &NetworkInfo{EffectiveType: "slow-2g"}, DeviceInfo{}, NetworkSlow},
		{"downlink only", &NetworkInfo{DownlinkMbps: 10}, DeviceInfo{}, NetworkFast},
		{"missing api, strong device", nil, DeviceInfo{MemoryGB: 8, Cores: 8}, NetworkFast},
		{"missing api, mid device", nil, DeviceInfo{MemoryGB: 4, Cores: 6}, NetworkMedium},
		{"missing api, weak device", nil, DeviceInfo{MemoryGB: 2, Cores: 4}, NetworkSlow},
		{"empty reading falls back", &NetworkInfo{}, DeviceInfo{MemoryGB: 8, Cores: 12}, NetworkFast},
		{"unknown type falls back", &NetworkInfo{EffectiveType: "wifi"}, DeviceInfo{}, NetworkSlow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyNetwork(tt.info, tt.device))
		})
	}
}

func TestPreloadPolicy(t *testing.T) {
	assert.Equal(t, PreloadDecision{Preload: PreloadAuto, Load: true, Keep: true}, PreloadPolicy(4, 4, 2))
	assert.Equal(t, PreloadDecision{Preload: PreloadMetadata, Keep: true}, PreloadPolicy(5, 4, 2))
	assert.Equal(t, PreloadDecision{Preload: PreloadNone, Keep: true}, PreloadPolicy(3, 4, 2))
	assert.Equal(t, PreloadDecision{Preload: PreloadNone, Keep: true}, PreloadPolicy(6, 4, 2))
	assert.Equal(t, PreloadDecision{Preload: PreloadNone, Keep: false}, PreloadPolicy(7, 4, 2))
	assert.Equal(t, PreloadDecision{Preload: PreloadNone, Keep: false}, PreloadPolicy(1, 4, 2))
}
