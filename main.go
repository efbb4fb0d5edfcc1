package main

import "github.com/KaramelBytes/hourlens/cmd"

func main() {
	cmd.Execute()
}
