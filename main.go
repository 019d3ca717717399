package main

import "jellyfin-migrator/cmd"

func main() {
	cmd.Execute()
}
