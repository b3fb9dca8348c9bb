// Command beancounter is the long-lived RPC server named in spec.md
// §6's process bootstrap.
package main

import (
	"github.com/umpyre/beancounter/internal/cli"
)

func main() {
	cli.Execute()
}
