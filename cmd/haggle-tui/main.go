package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "haggle-tui fatal error: %v\n", err)
		os.Exit(1)
	}
}
