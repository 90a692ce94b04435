// ABOUTME: Entry point for the narrator CLI
// ABOUTME: Hands off to the cobra command tree
package main

import "github.com/harperreed/narrator-go/internal/cli"

func main() {
	cli.Execute()
}
