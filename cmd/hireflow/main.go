package main

import (
	"log/slog"

	"github.com/hireflow/hireflow/pkg/hireflow"
)

func main() {

	//you may do your own logger setup here or use this default one with slog
	hireflow.SetupLogger()

	if err := hireflow.Start(nil); err != nil {
		slog.Error("Engine exited with error", "error", err)
	}
}
