// cmd/crawld/main.go
package main

import (
	"github.com/crawlkit/crawld/internal/cli"
)

func main() {
	// Signal handling lives in the serve command; one-shot commands exit
	// with cobra's error status.
	cli.Execute()
}
