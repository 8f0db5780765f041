package main

import (
	"github.com/aussiebroadwan/gatekeeper/cmd/gatekeeper/cmd"
)

// version will be set by the release build
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
