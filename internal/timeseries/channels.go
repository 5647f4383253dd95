package timeseries

// Canonical channel names.
const (
	FrameDuration    = "frameDuration"
	LeftLocalIndex   = "leftLocalIndex"
	BodyLocalIndex   = "bodyLocalIndex"
	WheelAngleSignal = "wheelAngleSignal"

	RightCamLeftPawX  = "rightCamLeftPawX"
	RightCamLeftPawY  = "rightCamLeftPawY"
	RightCamRightPawX = "rightCamRightPawX"
	RightCamRightPawY = "rightCamRightPawY"
	LeftCamLeftPawX   = "leftCamLeftPawX"
	LeftCamLeftPawY   = "leftCamLeftPawY"
	LeftCamRightPawX  = "leftCamRightPawX"
	LeftCamRightPawY  = "leftCamRightPawY"
)

// PawChannels names the x/y channel pair for one tracked paw in one camera.
type PawChannels struct {
	Name string
	X, Y string
}

// Paws lists the four tracked overlay points in a fixed order.
var Paws = []PawChannels{
	{Name: "rightCamLeftPaw", X: RightCamLeftPawX, Y: RightCamLeftPawY},
	{Name: "rightCamRightPaw", X: RightCamRightPawX, Y: RightCamRightPawY},
	{Name: "leftCamLeftPaw", X: LeftCamLeftPawX, Y: LeftCamLeftPawY},
	{Name: "leftCamRightPaw", X: LeftCamRightPawX, Y: LeftCamRightPawY},
}

// Required lists every channel a session must provide before playback.
func Required() []string {
	names := []string{FrameDuration, LeftLocalIndex, BodyLocalIndex, WheelAngleSignal}
	for _, p := range Paws {
		names = append(names, p.X, p.Y)
	}
	return names
}

// legacyNames maps the file suffixes used by the original recordings
// ("<session>.<suffix>.bytes") onto canonical names.
var legacyNames = map[string]string{
	"right_ts":   FrameDuration,
	"left_idx":   LeftLocalIndex,
	"body_idx":   BodyLocalIndex,
	"wheel":      WheelAngleSignal,
	"cr_paw_l_x": RightCamLeftPawX,
	"cr_paw_l_y": RightCamLeftPawY,
	"cr_paw_r_x": RightCamRightPawX,
	"cr_paw_r_y": RightCamRightPawY,
	"cl_paw_l_x": LeftCamLeftPawX,
	"cl_paw_l_y": LeftCamLeftPawY,
	"cl_paw_r_x": LeftCamRightPawX,
	"cl_paw_r_y": LeftCamRightPawY,
}

// CanonicalName resolves a legacy suffix to its canonical channel name.
// Canonical names and unknown names are returned unchanged.
func CanonicalName(name string) string {
	if canonical, ok := legacyNames[name]; ok {
		return canonical
	}
	return name
}
