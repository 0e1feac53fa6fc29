// Command pnginfo inspects generated images: the prompts embedded in their
// workflow graph, the generation parameters recorded in the meta.json
// sidecar, and the nodes the server registers.
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
