package main

import "github.com/nextlevelbuilder/sigclaw/cmd"

func main() {
	cmd.Execute()
}
