package playback

// CommandKind names an effect the host must apply to its media elements or UI.
type CommandKind string

const (
	CmdPlay            CommandKind = "play"
	CmdPause           CommandKind = "pause"
	CmdLoad            CommandKind = "load"
	CmdUnload          CommandKind = "unload"
	CmdSetPreload      CommandKind = "set_preload"
	CmdSwitchSource    CommandKind = "switch_source"
	CmdShowToast       CommandKind = "show_toast"
	CmdClearError      CommandKind = "clear_error"
	CmdShowHeart       CommandKind = "show_heart"
	CmdHaptic          CommandKind = "haptic"
	CmdLike            CommandKind = "like"
	CmdBookmark        CommandKind = "bookmark"
	CmdContextMenu     CommandKind = "context_menu"
	CmdSetMuted        CommandKind = "set_muted"
	CmdFullscreen      CommandKind = "fullscreen"
	CmdPictureInPic    CommandKind = "picture_in_picture"
	CmdSeek            CommandKind = "seek"
	CmdScrollTo        CommandKind = "scroll_to"
	CmdHelpOverlay     CommandKind = "help_overlay"
	CmdCloseOverlay    CommandKind = "close_overlay"
	CmdMiniPlayerOpen  CommandKind = "mini_player_open"
	CmdMiniPlayerClose CommandKind = "mini_player_close"
)

// Command is one effect emitted by the controller. Only the fields relevant
// to Kind are set.
type Command struct {
	Kind      CommandKind `json:"kind"`
	VideoID   string      `json:"video_id,omitempty"`
	Source    string      `json:"source,omitempty"`
	Preload   Preload     `json:"preload,omitempty"`
	Rendition *Rendition  `json:"rendition,omitempty"`
	Position  float64     `json:"position"`
	Paused    bool        `json:"paused,omitempty"`
	Muted     bool        `json:"muted,omitempty"`
	Index     int         `json:"index"`
	Progress  float64     `json:"progress,omitempty"`
	X         float64     `json:"x,omitempty"`
	Y         float64     `json:"y,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// Count returns how many commands of kind are in cmds.
func Count(cmds []Command, kind CommandKind) int {
	n := 0
	for _, c := range cmds {
		if c.Kind == kind {
			n++
		}
	}
	return n
}
