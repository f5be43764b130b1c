// Command sorter sorts a file of fixed-width int64 records using
// ExternalMergeSort. Usage: sorter <input_path> <output_path>
package main

import (
	"fmt"
	"os"

	"corelab/extsort"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: sorter <input_path> <output_path>")
		os.Exit(1)
	}

	in, out := os.Args[1], os.Args[2]
	opts := extsort.DefaultOptions()

	less := func(a, b int64) bool { return a < b }

	fmt.Fprintf(os.Stderr, "sorting %s -> %s (buf=%d ways=%d)\n", in, out, opts.BufLen, opts.Ways)
	if err := extsort.Sort[int64](in, out, opts, less); err != nil {
		fmt.Fprintf(os.Stderr, "sorter: %v\n", err)
		os.Exit(1)
	}
}
