//go:build !linux

package presence

func newPlatformSession(string) (Session, error) {
	return NoOpSession{}, nil
}

// NewPlatformWakeLock returns a lock that does nothing on platforms without a screensaver bus
func NewPlatformWakeLock(string) WakeLock {
	return NoOpWakeLock{}
}
