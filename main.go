package main

import "github.com/audiolibrelab/mockinterview/cmd"

func main() {
	cmd.Execute()
}
