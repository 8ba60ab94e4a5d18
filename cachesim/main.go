// Command cachesim replays an address trace through a set-associative LRU
// cache and reports the hit rate.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/cachesim/cmd"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
