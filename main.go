// main is the entry point for the reposcout CLI.
package main

import (
	"github.com/huangsam/reposcout/cmd"
	"github.com/huangsam/reposcout/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.LogFatal("reposcout", err)
	}
}
