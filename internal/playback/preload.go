package playback

// DefaultUnloadDistance is how many positions away from the visible video a
// player keeps its source.
const DefaultUnloadDistance = 2

// PreloadDecision is the preload policy outcome for one feed position.
type PreloadDecision struct {
	Preload Preload
	// Load forces the element to start loading.
	Load bool
	// Keep is false when the source must be cleared.
	Keep bool
}

// PreloadPolicy decides the preload hint for index given the visible index:
// the visible video loads fully, the next one loads metadata, and anything
// further than unloadDistance positions away is unloaded.
func PreloadPolicy(index, visible, unloadDistance int) PreloadDecision {
	if unloadDistance < 1 {
		unloadDistance = DefaultUnloadDistance
	}
	distance := index - visible
	if distance < 0 {
		distance = -distance
	}

	switch {
	case index == visible:
		return PreloadDecision{Preload: PreloadAuto, Load: true, Keep: true}
	case index == visible+1:
		return PreloadDecision{Preload: PreloadMetadata, Keep: true}
	case distance > unloadDistance:
		return PreloadDecision{Preload: PreloadNone, Keep: false}
	default:
		return PreloadDecision{Preload: PreloadNone, Keep: true}
	}
}
