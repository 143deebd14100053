//go:build linux

package presence

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/PizzaHomicide/marquee/internal/log"
)

const (
	mprisPath        = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisRootIface   = "org.mpris.MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisTrackID     = dbus.ObjectPath("/org/mpris/MediaPlayer2/marquee/track")
)

// MPRISSession publishes now playing state on the session bus as an MPRIS player
type MPRISSession struct {
	conn  *dbus.Conn
	props *prop.Properties
	name  string

	mu      sync.Mutex
	handler CommandHandler
}

// mprisRoot serves org.mpris.MediaPlayer2
type mprisRoot struct{}

func (mprisRoot) Raise() *dbus.Error { return nil }
func (mprisRoot) Quit() *dbus.Error  { return nil }

// mprisPlayer serves org.mpris.MediaPlayer2.Player
type mprisPlayer struct {
	session *MPRISSession
}

func (p mprisPlayer) Play() *dbus.Error      { return p.session.dispatch(CmdPlay, 0) }
func (p mprisPlayer) Pause() *dbus.Error     { return p.session.dispatch(CmdPause, 0) }
func (p mprisPlayer) PlayPause() *dbus.Error { return p.session.dispatch(CmdPlayPause, 0) }
func (p mprisPlayer) Stop() *dbus.Error      { return p.session.dispatch(CmdStop, 0) }
func (p mprisPlayer) Next() *dbus.Error      { return nil }
func (p mprisPlayer) Previous() *dbus.Error  { return nil }

// Seek moves by offset microseconds
func (p mprisPlayer) Seek(offset int64) *dbus.Error {
	return p.session.dispatch(CmdSeek, time.Duration(offset)*time.Microsecond)
}

func (p mprisPlayer) SetPosition(_ dbus.ObjectPath, _ int64) *dbus.Error { return nil }
func (p mprisPlayer) OpenUri(_ string) *dbus.Error                       { return nil }

// NewMPRISSession connects to the session bus and claims org.mpris.MediaPlayer2.<appName>.instance<pid>
func NewMPRISSession(appName string) (*MPRISSession, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	s := &MPRISSession{
		conn: conn,
		name: fmt.Sprintf("%s.%s.instance%d", mprisRootIface, appName, os.Getpid()),
	}
	if err := s.export(appName); err != nil {
		_ = conn.Close()
		return nil, err
	}

	reply, err := conn.RequestName(s.name, dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to request bus name %s: %w", s.name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		return nil, fmt.Errorf("bus name %s already taken", s.name)
	}

	log.Debug("MPRIS session registered", "name", s.name)
	return s, nil
}

func (s *MPRISSession) export(appName string) error {
	root := mprisRoot{}
	player := mprisPlayer{session: s}

	if err := s.conn.Export(root, mprisPath, mprisRootIface); err != nil {
		return fmt.Errorf("failed to export %s: %w", mprisRootIface, err)
	}
	if err := s.conn.Export(player, mprisPath, mprisPlayerIface); err != nil {
		return fmt.Errorf("failed to export %s: %w", mprisPlayerIface, err)
	}

	props, err := prop.Export(s.conn, mprisPath, prop.Map{
		mprisRootIface: {
			"CanQuit":             {Value: false, Emit: prop.EmitConst},
			"CanRaise":            {Value: false, Emit: prop.EmitConst},
			"HasTrackList":        {Value: false, Emit: prop.EmitConst},
			"Identity":            {Value: appName, Emit: prop.EmitConst},
			"SupportedUriSchemes": {Value: []string{}, Emit: prop.EmitConst},
			"SupportedMimeTypes":  {Value: []string{}, Emit: prop.EmitConst},
		},
		mprisPlayerIface: {
			"PlaybackStatus": {Value: "Stopped", Emit: prop.EmitTrue},
			"LoopStatus":     {Value: "None", Emit: prop.EmitTrue},
			"Rate":           {Value: 1.0, Emit: prop.EmitTrue},
			"Shuffle":        {Value: false, Emit: prop.EmitTrue},
			"Metadata":       {Value: map[string]dbus.Variant{}, Emit: prop.EmitTrue},
			"Volume":         {Value: 1.0, Emit: prop.EmitTrue},
			"Position":       {Value: int64(0), Emit: prop.EmitFalse},
			"MinimumRate":    {Value: 1.0, Emit: prop.EmitConst},
			"MaximumRate":    {Value: 1.0, Emit: prop.EmitConst},
			"CanGoNext":      {Value: false, Emit: prop.EmitConst},
			"CanGoPrevious":  {Value: false, Emit: prop.EmitConst},
			"CanPlay":        {Value: true, Emit: prop.EmitConst},
			"CanPause":       {Value: true, Emit: prop.EmitConst},
			"CanSeek":        {Value: true, Emit: prop.EmitConst},
			"CanControl":     {Value: true, Emit: prop.EmitConst},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to export MPRIS properties: %w", err)
	}
	s.props = props

	node := &introspect.Node{
		Name: string(mprisPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: mprisRootIface, Methods: introspect.Methods(root), Properties: props.Introspection(mprisRootIface)},
			{Name: mprisPlayerIface, Methods: introspect.Methods(player), Properties: props.Introspection(mprisPlayerIface)},
		},
	}
	return s.conn.Export(introspect.NewIntrospectable(node), mprisPath, "org.freedesktop.DBus.Introspectable")
}

func (s *MPRISSession) dispatch(cmd Command, offset time.Duration) *dbus.Error {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		// Handlers may block on a bridge round trip; the bus caller must not wait for that
		go handler(cmd, offset)
	}
	return nil
}

func (s *MPRISSession) UpdateMetadata(metadata Metadata) error {
	values := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(mprisTrackID),
		"xesam:title":   dbus.MakeVariant(metadata.Title),
	}
	if metadata.Artist != "" {
		values["xesam:artist"] = dbus.MakeVariant([]string{metadata.Artist})
	}
	if metadata.Album != "" {
		values["xesam:album"] = dbus.MakeVariant(metadata.Album)
	}
	if metadata.ArtworkURL != "" {
		values["mpris:artUrl"] = dbus.MakeVariant(metadata.ArtworkURL)
	}
	if metadata.Duration > 0 {
		values["mpris:length"] = dbus.MakeVariant(metadata.Duration.Microseconds())
	}
	if err := s.props.Set(mprisPlayerIface, "Metadata", dbus.MakeVariant(values)); err != nil {
		return err
	}
	return nil
}

func (s *MPRISSession) UpdatePlaybackState(playing bool, position time.Duration) error {
	status := "Paused"
	if playing {
		status = "Playing"
	}
	if err := s.props.Set(mprisPlayerIface, "PlaybackStatus", dbus.MakeVariant(status)); err != nil {
		return err
	}
	if position > 0 {
		if err := s.props.Set(mprisPlayerIface, "Position", dbus.MakeVariant(position.Microseconds())); err != nil {
			return err
		}
	}
	return nil
}

func (s *MPRISSession) SetCommandHandler(handler CommandHandler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

func (s *MPRISSession) Close() error {
	if _, err := s.conn.ReleaseName(s.name); err != nil {
		log.Debug("Failed to release MPRIS bus name", "error", err)
	}
	return s.conn.Close()
}

// ScreenSaverLock inhibits the screensaver through org.freedesktop.ScreenSaver
type ScreenSaverLock struct {
	appName string

	mu     sync.Mutex
	conn   *dbus.Conn
	cookie uint32
	held   bool
}

// NewScreenSaverLock creates a wake lock that connects to the session bus on first use
func NewScreenSaverLock(appName string) *ScreenSaverLock {
	return &ScreenSaverLock{appName: appName}
}

func (l *ScreenSaverLock) screenSaver() (dbus.BusObject, error) {
	if l.conn == nil {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to session bus: %w", err)
		}
		l.conn = conn
	}
	return l.conn.Object("org.freedesktop.ScreenSaver", "/org/freedesktop/ScreenSaver"), nil
}

func (l *ScreenSaverLock) Acquire(reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil
	}

	obj, err := l.screenSaver()
	if err != nil {
		return err
	}
	var cookie uint32
	if err := obj.Call("org.freedesktop.ScreenSaver.Inhibit", 0, l.appName, reason).Store(&cookie); err != nil {
		return fmt.Errorf("screensaver inhibit failed: %w", err)
	}
	l.cookie = cookie
	l.held = true
	return nil
}

func (l *ScreenSaverLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	l.held = false

	obj, err := l.screenSaver()
	if err != nil {
		return err
	}
	if err := obj.Call("org.freedesktop.ScreenSaver.UnInhibit", 0, l.cookie).Err; err != nil {
		return fmt.Errorf("screensaver uninhibit failed: %w", err)
	}
	return nil
}

func newPlatformSession(appName string) (Session, error) {
	session, err := NewMPRISSession(appName)
	if err != nil {
		log.Info("MPRIS unavailable, media keys disabled", "error", err)
		return NoOpSession{}, nil
	}
	return session, nil
}

// NewPlatformWakeLock returns the screensaver inhibitor
func NewPlatformWakeLock(appName string) WakeLock {
	return NewScreenSaverLock(appName)
}
