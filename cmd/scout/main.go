// Command scout runs the Project Scout analytics dashboard.
package main

import (
	"context"
	"fmt"
	"os"

	"scout-dashboard/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
