package main

import (
	"github.com/sonar-music/sonar/cmd"
)

func main() {
	cmd.Execute()
}
