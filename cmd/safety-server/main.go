package main

import "github.com/oshokin/tourist-safety/cmd/safety-server/cmd"

func main() {
	cmd.Execute()
}
