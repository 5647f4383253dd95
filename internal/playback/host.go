package playback

// HostObserver receives fire-and-forget notifications for an embedding host.
// Implementations must not block the playback loop.
type HostObserver interface {
	OnTimeUpdated(time float64)
	OnTrialChanged(trialNo int)
	OnLoaded()
}

// NopHost discards all notifications.
type NopHost struct{}

func (NopHost) OnTimeUpdated(float64) {}
func (NopHost) OnTrialChanged(int)    {}
func (NopHost) OnLoaded()             {}

// MultiHost fans notifications out to several observers in order.
type MultiHost []HostObserver

func (m MultiHost) OnTimeUpdated(time float64) {
	for _, h := range m {
		h.OnTimeUpdated(time)
	}
}

func (m MultiHost) OnTrialChanged(trialNo int) {
	for _, h := range m {
		h.OnTrialChanged(trialNo)
	}
}

func (m MultiHost) OnLoaded() {
	for _, h := range m {
		h.OnLoaded()
	}
}
