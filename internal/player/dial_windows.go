//go:build windows

package player

import (
	"context"
	"fmt"
	"net"
	"time"

	"gopkg.in/natefinch/npipe.v2"

	"github.com/PizzaHomicide/marquee/internal/log"
)

// dialIPC connects to a Windows named pipe
func dialIPC(ctx context.Context, path string) (net.Conn, error) {
	log.Debug("Connecting to Windows named pipe", "path", path)

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	conn, err := npipe.DialTimeout(path, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pipe %s: %w", path, err)
	}
	return conn, nil
}
