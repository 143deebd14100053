//go:build !windows

package player

import (
	"context"
	"fmt"
	"net"

	"github.com/PizzaHomicide/marquee/internal/log"
)

// dialIPC connects to a unix domain socket
func dialIPC(ctx context.Context, path string) (net.Conn, error) {
	log.Debug("Connecting to Unix socket", "path", path)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", path, err)
	}
	return conn, nil
}
