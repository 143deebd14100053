// Package platform decides, once per process, which playback backend the runtime supports.
package platform

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/PizzaHomicide/marquee/internal/log"
)

// Kind identifies one playback backend
type Kind string

const (
	KindWeb             Kind = "web"
	KindEmbeddedDesktop Kind = "embedded-desktop"
	KindMobileNative    Kind = "mobile-native"
	KindTVNative        Kind = "tv-native"
)

// ErrUnknownBackend is returned when a configured backend name is not one of the known kinds
var ErrUnknownBackend = errors.New("unknown playback backend")

const (
	// EnvDesktopBridge is exported by the desktop shell that embeds marquee
	EnvDesktopBridge = "MARQUEE_DESKTOP_BRIDGE"
	// EnvNativeBridge points at the socket the mobile/TV container listens on
	EnvNativeBridge = "MARQUEE_NATIVE_BRIDGE"
	// EnvFormFactor is set by the native container to "tv" or "mobile"
	EnvFormFactor = "MARQUEE_FORM_FACTOR"
	// EnvDeviceAgent carries the container's device user agent
	EnvDeviceAgent = "MARQUEE_DEVICE_AGENT"
)

// Device user agent tokens of Android TV class hardware
var tvAgentTokens = []string{"AFT", "ARRIS", "BRAVIA", "Nexus Player", "HbbTV"}

// ParseKind converts a configured backend name into a Kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindWeb, KindEmbeddedDesktop, KindMobileNative, KindTVNative:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Environment is the view of the runtime the resolver inspects
type Environment struct {
	LookupEnv func(string) (string, bool)
	Exists    func(path string) bool
}

// OSEnvironment inspects the real process environment and filesystem
func OSEnvironment() Environment {
	return Environment{
		LookupEnv: os.LookupEnv,
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// Resolver computes the backend kind a single time.  The result never changes for the life of the Resolver.
type Resolver struct {
	env    Environment
	forced Kind

	once sync.Once
	kind Kind
}

// NewResolver builds a resolver over env.  A non-empty forced kind bypasses detection.
func NewResolver(env Environment, forced Kind) *Resolver {
	return &Resolver{env: env, forced: forced}
}

// Resolve returns the backend kind, detecting it on the first call only
func (r *Resolver) Resolve() Kind {
	r.once.Do(func() {
		if r.forced != "" {
			r.kind = r.forced
			log.Info("Playback backend forced by configuration", "backend", r.kind)
			return
		}
		r.kind = r.detect()
		log.Info("Playback backend detected", "backend", r.kind)
	})
	return r.kind
}

func (r *Resolver) detect() Kind {
	if v, ok := r.lookup(EnvDesktopBridge); ok && v != "" {
		return KindEmbeddedDesktop
	}

	if socket, ok := r.lookup(EnvNativeBridge); ok && socket != "" && r.exists(socket) {
		if r.isTV() {
			return KindTVNative
		}
		return KindMobileNative
	}

	return KindWeb
}

func (r *Resolver) isTV() bool {
	if ff, ok := r.lookup(EnvFormFactor); ok {
		switch strings.ToLower(ff) {
		case "tv":
			return true
		case "mobile":
			return false
		}
	}
	agent, _ := r.lookup(EnvDeviceAgent)
	for _, token := range tvAgentTokens {
		if strings.Contains(agent, token) {
			return true
		}
	}
	return false
}

func (r *Resolver) lookup(key string) (string, bool) {
	if r.env.LookupEnv == nil {
		return "", false
	}
	return r.env.LookupEnv(key)
}

func (r *Resolver) exists(path string) bool {
	if r.env.Exists == nil {
		return false
	}
	return r.env.Exists(path)
}
