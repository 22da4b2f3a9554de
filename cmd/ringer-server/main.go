package main

import "github.com/oshokin/contact-ringer/cmd/ringer-server/cmd"

func main() {
	cmd.Execute()
}
