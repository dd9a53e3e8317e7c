package main

import "github.com/voicenotelab/voicenote/cmd"

func main() {
	cmd.Execute()
}
