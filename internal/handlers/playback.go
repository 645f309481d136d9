package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/playback"
	"github.com/reelhub/backend/internal/util"
	"github.com/reelhub/backend/internal/videos"
)

// GetPlaybackQuality picks the rendition a client should play next from its
// buffer and network readings. Without ?height= the starting rendition for
// the network class is returned.
// GET /api/v1/videos/:id/quality?buffer=&height=&effective_type=&downlink=&memory=&cores=
func (h *Handlers) GetPlaybackQuality(c *gin.Context) {
	item, err := h.Videos.Get(c.Request.Context(), util.OptionalUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load video")
		return
	}
	video := videos.ToPlaybackVideo(*item)

	var info *playback.NetworkInfo
	if et, downlink := c.Query("effective_type"), util.ParseFloat(c.Query("downlink"), 0); et != "" || downlink > 0 {
		info = &playback.NetworkInfo{EffectiveType: et, DownlinkMbps: downlink}
	}
	network := playback.ClassifyNetwork(info, playback.DeviceInfo{
		MemoryGB: util.ParseFloat(c.Query("memory"), 0),
		Cores:    util.ParseInt(c.Query("cores"), 0),
	})

	height := util.ParseInt(c.Query("height"), 0)
	var selected playback.Rendition
	var found bool
	if height <= 0 {
		selected, found = playback.BestForNetwork(video.Renditions, network)
	} else {
		current := playback.Rendition{Height: height}
		for _, r := range video.Renditions {
			if r.Height == height {
				current = r
			}
		}
		selected = playback.SelectQuality(util.ParseFloat(c.Query("buffer"), 0), current, network, video.Renditions)
		found = len(video.Renditions) > 0
	}

	if !found {
		// single-source video, play the original
		selected = playback.Rendition{Label: "source", URL: video.URL}
	}
	c.JSON(http.StatusOK, gin.H{
		"video_id":  video.ID,
		"network":   network,
		"rendition": selected,
	})
}
