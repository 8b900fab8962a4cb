// Command navstack validates navigation catalogs, resolves deep links,
// runs scenarios and inspects navigation journals.
package main

import (
	"os"

	"github.com/roach88/navstack/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
