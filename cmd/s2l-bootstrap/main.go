package main

import "github.com/oshokin/s2l-bootstrap/cmd/s2l-bootstrap/cmd"

func main() {
	cmd.Execute()
}
