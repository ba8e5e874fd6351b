// verdict fuses per-view analyzer verdicts about a message into one decision.
//
// Usage:
//
//	verdict normalize --role=content [file|-]
//	verdict fuse content.json reference.json metadata.json
//	verdict analyze --subject=<s> --body-file=<path> [--url=<u>...] [--headers-file=<path>]
//	verdict worker
//	verdict submit [artifact.json|-]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
