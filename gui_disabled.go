//go:build !gui

package main

import (
	"fmt"

	"quill/log"
)

func runGUI(d deps) error {
	log.Info("built without gui, falling back to dictate mode")
	fmt.Println("This build has no notepad window (rebuild with -tags gui). Starting dictate mode.")
	return runDictate(d)
}
