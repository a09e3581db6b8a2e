package main

import (
	"fmt"
	"os"

	"github.com/dupescout/dupescout/internal/types"
)

// validateThreshold checks that a similarity threshold is a usable ratio.
func validateThreshold(t float64) error {
	if t < 0 || t > 1 {
		return fmt.Errorf("threshold %v out of range [0.0, 1.0]", t)
	}
	return nil
}

// printGroups writes discovered duplicate groups to stdout in id order.
func printGroups(groups types.Groups) {
	if len(groups) == 0 {
		fmt.Println("No duplicate groups found")
		return
	}
	fmt.Printf("Found %d duplicate groups:\n", len(groups))
	for _, id := range groups.IDs() {
		fmt.Fprintln(os.Stdout)
		for _, path := range groups[id] {
			fmt.Println(path)
		}
	}
}
