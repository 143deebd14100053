package player

import (
	"fmt"
	"os"

	"github.com/PizzaHomicide/marquee/internal/config"
	"github.com/PizzaHomicide/marquee/internal/log"
	"github.com/PizzaHomicide/marquee/internal/platform"
)

// NewBackend creates the backend adapter for kind
func NewBackend(kind platform.Kind, cfg *config.Config) (Backend, error) {
	log.Info("Creating playback backend", "kind", kind)

	switch kind {
	case platform.KindWeb:
		return NewWebBackend(NewSocketElement(cfg.Player.Web.URL), cfg.Playback.UnmuteDelay), nil
	case platform.KindEmbeddedDesktop:
		return NewDesktopBackend(cfg.Player.MPV), nil
	case platform.KindMobileNative, platform.KindTVNative:
		socket := cfg.Player.Native.Socket
		if socket == "" {
			socket = os.Getenv(platform.EnvNativeBridge)
		}
		if socket == "" {
			return nil, fmt.Errorf("no bridge socket configured for %s", kind)
		}
		return NewNativeBackend(kind, socket), nil
	default:
		return nil, fmt.Errorf("%w: %q", platform.ErrUnknownBackend, kind)
	}
}
