// Command ignitectl manages caches of an Apache Ignite cluster over the thin client protocol.
//
//	ignitectl --addresses 127.0.0.1:10800 caches
//	ignitectl put accounts alice 10 --create
//	ignitectl get accounts alice
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/yanglinqiang/ignite"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError prints err in red, the status code of cluster errors in yellow.
func printError(w io.Writer, err error) {
	var igniteErr *ignite.IgniteError
	if errors.As(err, &igniteErr) && !igniteErr.IsSuccess() {
		fmt.Fprintf(w, "%s %s\n", color.YellowString("[%s]", igniteErr.Code), color.RedString(igniteErr.Message))
		return
	}
	fmt.Fprintln(w, color.RedString(err.Error()))
}
