package main

import (
	"github.com/ColonelBlimp/bandmeter/cmd"
	"github.com/ColonelBlimp/bandmeter/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
