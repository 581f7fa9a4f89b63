package main

import "github.com/frahmantamala/iam-copilot/cmd"

func main() {
	cmd.Execute()
}
