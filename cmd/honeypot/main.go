// Command honeypot runs the scam honeypot as an HTTP server, a Telegram bot,
// or a one-shot simulator.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
