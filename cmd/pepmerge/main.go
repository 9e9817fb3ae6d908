// pepmerge - identification merging, FDR curation and spectral similarity
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/pepmerge/cmd/pepmerge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
