package main

import "github.com/KaramelBytes/statguard-cli/cmd"

func main() {
	cmd.Execute()
}
