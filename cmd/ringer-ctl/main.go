package main

import "github.com/oshokin/contact-ringer/cmd/ringer-ctl/cmd"

func main() {
	cmd.Execute()
}
