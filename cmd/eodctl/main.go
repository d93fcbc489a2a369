// Package main runs the eodctl maintenance CLI.
package main

import "github.com/watchdogpolska/small-eod/internal/cmd/eodctl"

func main() {
	eodctl.Execute()
}
