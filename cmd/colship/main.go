package main

import (
	"fmt"
	"os"

	"github.com/colship/colship"
	"github.com/colship/colship/release"
)

func main() {
	release.RegisterTasks()

	// A process spawned as a pipeline worker talks the IPC protocol over
	// stdio instead of parsing CLI arguments.
	if colship.IsWorkerProcess() {
		if err := colship.RunWorker(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "worker failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	Execute()
}
