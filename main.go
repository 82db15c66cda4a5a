package main

import (
	"fmt"
	"os"

	"github.com/zeek-r/go-greeter/internal/app"
)

func main() {
	if err := app.RunGreeter(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "greeter: %v\n", err)
		os.Exit(1)
	}
}
