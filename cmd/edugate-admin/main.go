package main

import (
	"github.com/turtacn/edugate/cmd/cli"
)

// main is the entry point for the edugate-admin command-line tool.
// main 是 edugate-admin 命令行工具的入口点。
func main() {
	cli.Execute()
}
