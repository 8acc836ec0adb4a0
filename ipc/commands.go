package ipc

import "github.com/nstehr/vimy/vimy-bot/model"

// Intent kinds. Must stay in sync with the plugin's input executor.
const (
	IntentAim     = "aim"
	IntentPress   = "press"
	IntentRelease = "release"
	IntentTap     = "tap"
	IntentMove    = "move"
	IntentStop    = "stop"
	IntentEquip   = "equip"
	IntentCommand = "command"
)

// Control names understood by the plugin.
const (
	ControlPrimary   = "primary"
	ControlSecondary = "secondary"
	ControlJump      = "jump"
	ControlCrouch    = "crouch"
	ControlUse       = "use"
	ControlReload    = "reload"
)

// Intent is a single actuation request. Only the fields relevant to Kind
// are set.
type Intent struct {
	Kind    string      `json:"kind"`
	Control string      `json:"control,omitempty"`
	Pos     *model.Vec3 `json:"pos,omitempty"`
	Target  int         `json:"target,omitempty"`
	Slot    string      `json:"slot,omitempty"`
	Command string      `json:"command,omitempty"`
	Args    []string    `json:"args,omitempty"`
}
