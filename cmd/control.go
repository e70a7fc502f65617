package cmd

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/kanata-switcher/kanata-focusd/internal/controlbus"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause focus-driven layer switching on the running daemon",
	RunE:  callControl("Pause"),
}

var unpauseCmd = &cobra.Command{
	Use:   "unpause",
	Short: "Resume focus-driven layer switching on the running daemon",
	RunE:  callControl("Unpause"),
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Ask the running daemon to shut down cleanly and re-exec itself",
	RunE:  callControl("Restart"),
}

// callControl builds a RunE that dials the session bus, invokes method on
// the daemon's exported control object, and reports ControlUnavailableError
// if no daemon currently owns controlbus.BusName (spec.md §6: these
// sub-commands "exit non-zero if the daemon is not running").
func callControl(method string) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return &ControlUnavailableError{Err: fmt.Errorf("connect session bus: %w", err)}
		}
		defer func() { _ = conn.Close() }()

		obj := conn.Object(controlbus.BusName, controlbus.ObjectPath)
		call := obj.Call(controlbus.InterfaceName+"."+method, 0)
		if call.Err != nil {
			return &ControlUnavailableError{Err: fmt.Errorf("%s: %w", method, call.Err)}
		}
		return nil
	}
}
