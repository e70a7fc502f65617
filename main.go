// Command kanata-focusd watches the focused window and drives a Kanata
// keyboard remapper process over its TCP line protocol.
package main

import (
	"os"

	"github.com/kanata-switcher/kanata-focusd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCodeFor(err))
	}
}
