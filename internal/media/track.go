// Package media coordinates the three video tracks of a session: it maps a
// master frame to each track's local frame, issues seek+prepare requests and
// exposes a non-blocking readiness barrier.
package media

// Position is a track's reported playhead. A track that has not decoded a
// frame yet reports NotReady rather than a magic frame number, so frame 0 is
// never ambiguous.
type Position struct {
	Frame int
	Ready bool
}

// NotReady is the Position of a track that cannot report a frame yet.
var NotReady = Position{}

// At returns a ready Position for frame.
func At(frame int) Position {
	return Position{Frame: frame, Ready: true}
}

// Track is one asynchronously buffered video resource.
type Track interface {
	URL() string
	// Frame returns the current local frame, or NotReady.
	Frame() Position
	// Seek moves the playhead to a local frame. It usually invalidates
	// preparation.
	Seek(frame int)
	IsPrepared() bool
	Prepare()
	Play()
	Stop()
}

// TrackID names a camera.
type TrackID string

const (
	TrackRight TrackID = "right"
	TrackLeft  TrackID = "left"
	TrackBody  TrackID = "body"
)

// Tracks groups the three cameras of a session. Right is the reference track:
// its local frame equals the master frame.
type Tracks struct {
	Right Track
	Left  Track
	Body  Track
}

type namedTrack struct {
	id    TrackID
	track Track
}

func (t Tracks) each() []namedTrack {
	return []namedTrack{
		{TrackRight, t.Right},
		{TrackLeft, t.Left},
		{TrackBody, t.Body},
	}
}

// Complete reports whether all three tracks are set.
func (t Tracks) Complete() bool {
	return t.Right != nil && t.Left != nil && t.Body != nil
}
