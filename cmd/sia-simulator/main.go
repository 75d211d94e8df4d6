package main

import "github.com/oshokin/sia-bridge/cmd/sia-simulator/cmd"

func main() {
	cmd.Execute()
}
