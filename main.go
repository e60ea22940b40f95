package main

import "github.com/audiolibrelab/audiodemo/cmd"

func main() {
	cmd.Execute()
}
