// Command trialviewer replays recorded behavioural sessions trial by trial:
// three synchronised camera tracks, the stimulus the animal saw, and its
// wheel and paw traces.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
