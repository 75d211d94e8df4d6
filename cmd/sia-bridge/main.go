package main

import "github.com/oshokin/sia-bridge/cmd/sia-bridge/cmd"

func main() {
	cmd.Execute()
}
