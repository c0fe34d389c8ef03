// Command structsight reports record layouts, padding and reordering
// opportunities for Go, C and C++ sources.
package main

import (
	"os"

	"github.com/ieee-cs-bmsit/structsight/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
