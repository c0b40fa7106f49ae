package main

import (
	"github.com/luma/cmdmessenger/cmd"
)

func main() {
	cmd.Execute()
}
