// Command rip buries files in a graveyard instead of deleting them.
package main

import "github.com/rip-project/rip/internal/cli"

func main() {
	cli.Execute()
}
