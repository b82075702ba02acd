package main

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/hashchain/cmd"
	"github.com/mezonai/hashchain/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("HASHCHAIN CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
