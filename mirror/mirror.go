package mirror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// DefaultADBPath is the adb binary looked up on PATH.
	DefaultADBPath = "adb"
	// DefaultScrcpyPath is the scrcpy binary looked up on PATH.
	DefaultScrcpyPath = "scrcpy"
)

// Result strings recorded on the sink.
const (
	ResultADBNotFound    = "ADB binary not found."
	ResultScrcpyNotFound = "scrcpy binary not found."
	ResultDisconnected   = "ADB disconnected."
)

// ResultSink records the latest ADB/scrcpy outcome. *state.Store implements it.
type ResultSink interface {
	ADBResult() (string, bool)
	SetADBResult(result string, connected bool)
}

// Options configures a Controller.
type Options struct {
	ADBPath    string
	ScrcpyPath string
	Runner     Runner
	Sink       ResultSink
	Logger     zerolog.Logger
}

// LaunchOptions selects the scrcpy display mode.
type LaunchOptions struct {
	// Desktop opens a large virtual display.
	Desktop bool
	// Package starts a single app on its own virtual display.
	Package string
}

// Controller drives adb and scrcpy for wireless mirroring.
type Controller struct {
	adbPath    string
	scrcpyPath string
	runner     Runner
	sink       ResultSink
	log        zerolog.Logger
}

// NewController builds a controller. A nil Runner uses ExecRunner.
func NewController(options Options) *Controller {
	if options.ADBPath == "" {
		options.ADBPath = DefaultADBPath
	}
	if options.ScrcpyPath == "" {
		options.ScrcpyPath = DefaultScrcpyPath
	}
	if options.Runner == nil {
		options.Runner = ExecRunner{}
	}
	return &Controller{
		adbPath:    options.ADBPath,
		scrcpyPath: options.ScrcpyPath,
		runner:     options.Runner,
		sink:       options.Sink,
		log:        options.Logger.With().Str("component", "mirror").Logger(),
	}
}

// Connect restarts the adb server and connects to ip:port. The combined
// tool output is the result; it counts as connected when it says so.
func (c *Controller) Connect(ctx context.Context, ip string, port int) (string, bool) {
	if _, err := c.runner.LookPath(c.adbPath); err != nil {
		c.record(ResultADBNotFound, false)
		return ResultADBNotFound, false
	}

	address := net.JoinHostPort(ip, strconv.Itoa(port))
	if _, err := c.runner.Output(ctx, c.adbPath, "kill-server"); err != nil {
		c.log.Debug().Err(err).Msg("adb kill-server")
	}
	output, err := c.runner.Output(ctx, c.adbPath, "connect", address)
	if err != nil && output == "" {
		output = fmt.Sprintf("Error running command: %v", err)
	}

	connected := IsConnected(output)
	c.record(output, connected)
	c.log.Info().Str("address", address).Bool("connected", connected).Msg("adb connect")
	return output, connected
}

// Disconnect stops the adb server.
func (c *Controller) Disconnect(ctx context.Context) {
	if _, err := c.runner.Output(ctx, c.adbPath, "kill-server"); err != nil {
		c.log.Debug().Err(err).Msg("adb kill-server")
	}
	c.record(ResultDisconnected, false)
}

// StartMirroring launches scrcpy and returns immediately with a status string.
func (c *Controller) StartMirroring(ip string, port int, deviceName string, launch LaunchOptions) string {
	args := ScrcpyArgs(ip, port, deviceName, launch)

	var result string
	if err := c.runner.Start(c.scrcpyPath, args...); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			result = ResultScrcpyNotFound
		} else {
			result = fmt.Sprintf("Failed to start scrcpy: %v", err)
		}
		c.log.Warn().Err(err).Msg("scrcpy launch failed")
	} else {
		result = "Started scrcpy on " + net.JoinHostPort(ip, strconv.Itoa(port))
	}

	connected := false
	if c.sink != nil {
		_, connected = c.sink.ADBResult()
	}
	c.record(result, connected)
	return result
}

// ScrcpyArgs builds the scrcpy argument list, without the binary.
func ScrcpyArgs(ip string, port int, deviceName string, launch LaunchOptions) []string {
	args := []string{
		"--window-title=" + strings.ReplaceAll(deviceName, "'", ""),
		"--tcpip=" + net.JoinHostPort(ip, strconv.Itoa(port)),
		"--video-bit-rate=3M",
		"--video-codec=h265",
		"--max-size=1200",
	}
	if launch.Desktop {
		args = append(args, "--new-display=2560x1440")
	}
	if launch.Package != "" {
		args = append(args,
			"--new-display=500x800",
			"--start-app="+launch.Package,
			"--no-vd-system-decorations",
		)
	}
	return args
}

// IsConnected reports whether adb output indicates a live connection.
func IsConnected(output string) bool {
	return strings.Contains(strings.ToLower(output), "connected to")
}

func (c *Controller) record(result string, connected bool) {
	if c.sink != nil {
		c.sink.SetADBResult(result, connected)
	}
}
