package main

import "github.com/oshokin/tourist-safety/cmd/safety-ctl/cmd"

func main() {
	cmd.Execute()
}
