package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"airsync/clipboard"
	"airsync/config"
	"airsync/discovery"
	"airsync/mirror"
	"airsync/network"
	"airsync/notify"
	"airsync/state"
	"airsync/storage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the message channel server",
	Long: `Run the WebSocket server the phone connects to, advertise it over mDNS,
sync the clipboard and record history until interrupted.

Changes to settings.json are picked up while running, or on SIGHUP. A
changed port restarts the server.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port for this run (default: configured port, or "+portEnv+")")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	system := clipboard.System{}
	if !clipboard.Available() {
		logger.Warn().Msg("no clipboard utility found, clipboard sync disabled")
	}
	notifier := notify.New(notify.Options{Logger: logger})

	st, err := openState(state.Options{Notifier: notifier, Clipboard: system})
	if err != nil {
		return err
	}

	port, err := resolvePort(servePort, st.Preferences().Port)
	if err != nil {
		return err
	}

	if db, dbPath, err := storage.Open(appPaths.DataDir); err != nil {
		logger.Warn().Err(err).Msg("history database unavailable, history disabled")
	} else {
		logger.Debug().Str("path", dbPath).Msg("history database opened")
		defer db.Close()
		recorder := storage.NewRecorder(db, logger)
		defer recorder.Close()
		cancel := recorder.Attach(st)
		defer cancel()
	}

	server, err := network.NewServer(network.Options{Store: st, Logger: logger})
	if err != nil {
		return err
	}
	st.AttachPeer(server)

	sup := &supervisor{
		ctx:    ctx,
		store:  st,
		server: server,
		mirror: mirror.NewController(mirror.Options{Sink: st, Logger: logger}),
		ports:  make(chan int, 1),
	}
	sup.start(port)
	defer sup.stop()

	defer st.Subscribe(sup.onPreferences, state.PreferencesChanged)()
	defer st.Subscribe(sup.onDevice, state.DeviceChanged)()

	if details, _ := st.License(); details != nil {
		go st.RefreshLicense(ctx, "")
	}

	if clipboard.Available() {
		go clipboard.NewWatcher(system, st, clipboard.DefaultPollInterval, logger).Run(ctx)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sup.loop(hup)
	}()
	go func() {
		defer wg.Done()
		if err := config.Watch(ctx, appPaths.SettingsFile, config.DefaultWatchDebounce, sup.reload); err != nil {
			logger.Warn().Err(err).Msg("settings file not watched, use SIGHUP to reload")
		}
	}()

	printBanner(cmd.OutOrStdout(), sup.identity(), st)

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	wg.Wait()
	notifier.Wait()
	return nil
}

// resolvePort picks the flag, then AIRSYNC_PORT, then the configured port.
func resolvePort(flagPort, configured int) (int, error) {
	port := configured
	if raw := os.Getenv(portEnv); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", portEnv, err)
		}
		port = parsed
	}
	if flagPort != 0 {
		port = flagPort
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%w: port %d", config.ErrInvalidPreference, port)
	}
	return port, nil
}

// supervisor owns the server and mDNS lifetimes and reacts to store events.
type supervisor struct {
	ctx    context.Context
	store  *state.Store
	server *network.Server
	mirror *mirror.Controller
	ports  chan int

	mu          sync.Mutex
	port        int
	broadcaster *discovery.Broadcaster
	ident       discovery.Identity
}

func (s *supervisor) start(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.port = port
	if err := s.server.Start(port); err != nil {
		logger.Error().Err(err).Int("port", port).Msg("server not started")
	}

	s.ident = discovery.LocalIdentity(s.store.Preferences().DeviceName, port)
	broadcaster, err := discovery.StartBroadcaster(discovery.Config{Identity: s.ident})
	if err != nil {
		logger.Warn().Err(err).Msg("mDNS advertisement unavailable")
		return
	}
	s.broadcaster = broadcaster
}

func (s *supervisor) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.broadcaster.Stop()
	s.broadcaster = nil
	if err := s.server.Stop(); err != nil {
		logger.Warn().Err(err).Msg("server stop")
	}
}

func (s *supervisor) identity() discovery.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ident
}

func (s *supervisor) currentPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// onPreferences never restarts inline: the observer may run on a session
// goroutine that Stop waits for.
func (s *supervisor) onPreferences(event state.Event) {
	if event.Preferences == nil || event.Preferences.Port == s.currentPort() {
		return
	}
	select {
	case <-s.ports:
	default:
	}
	s.ports <- event.Preferences.Port
}

func (s *supervisor) onDevice(event state.Event) {
	if event.Device == nil {
		return
	}
	prefs := s.store.Preferences()
	if !prefs.ADBEnabled {
		return
	}
	ip := event.Device.IPAddress
	go s.mirror.Connect(s.ctx, ip, prefs.ADBPort)
}

func (s *supervisor) loop(hup <-chan os.Signal) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-hup:
			s.reload()
		case port := <-s.ports:
			if port == s.currentPort() {
				continue
			}
			logger.Info().Int("port", port).Msg("port changed, restarting server")
			s.stop()
			s.start(port)
		}
	}
}

func (s *supervisor) reload() {
	loaded, err := config.Load(appPaths.SettingsFile)
	if err != nil {
		logger.Warn().Err(err).Msg("reload settings")
		return
	}
	if !userSettingsChanged(s.store.Preferences(), loaded) {
		return
	}
	err = s.store.UpdatePreferences(func(p *config.Preferences) {
		p.DeviceName = loaded.DeviceName
		p.Port = loaded.Port
		p.ADBPort = loaded.ADBPort
		p.MirroringPlus = loaded.MirroringPlus
		p.ADBEnabled = loaded.ADBEnabled
		p.ClipboardSyncEnabled = loaded.ClipboardSyncEnabled
		p.WindowOpacity = loaded.WindowOpacity
	})
	if err != nil {
		logger.Warn().Err(err).Msg("reloaded settings rejected")
		return
	}
	logger.Info().Msg("settings reloaded")
}

// userSettingsChanged ignores fields the server writes itself, so its own
// saves do not trigger a reload.
func userSettingsChanged(current, loaded *config.Preferences) bool {
	return current.DeviceName != loaded.DeviceName ||
		current.Port != loaded.Port ||
		current.ADBPort != loaded.ADBPort ||
		current.MirroringPlus != loaded.MirroringPlus ||
		current.ADBEnabled != loaded.ADBEnabled ||
		current.ClipboardSyncEnabled != loaded.ClipboardSyncEnabled ||
		current.WindowOpacity != loaded.WindowOpacity
}

func printBanner(w io.Writer, identity discovery.Identity, st *state.Store) {
	prefs := st.Preferences()
	address := identity.IPAddress
	if address == "" {
		address = "N/A"
	}

	status := st.ServerStatus()
	if status == state.ServerStatusStarted {
		status = okStyle.Render(status)
	} else {
		status = warnStyle.Render(status)
	}

	var dbSize string
	if info, err := os.Stat(appPaths.DatabaseFile); err == nil {
		dbSize = " (" + humanize.Bytes(uint64(info.Size())) + ")"
	}

	rows := []row{
		{label: "Device", value: identity.Name},
		{label: "Address", value: address + ":" + strconv.Itoa(identity.Port)},
		{label: "Server", value: status},
		{label: "Clipboard sync", value: yesNo(prefs.ClipboardSyncEnabled)},
		{label: "AirSync+", value: yesNo(prefs.IsPlus)},
		{label: "Data directory", value: appPaths.DataDir},
		{label: "History", value: appPaths.DatabaseFile + dbSize},
	}
	if uri, err := discovery.PairingURI(identity, prefs.IsPlus); err == nil {
		rows = append(rows, row{label: "Pairing URI", value: uri})
	}

	printHeader(w, "AirSync")
	printRows(w, rows)
	fmt.Fprintln(w, dimStyle.Render("Press Ctrl+C to stop."))
}
