package main

import (
	"os"

	"cosmossdk.io/log"

	"github.com/openalpha/lobengine/cmd/lobenginectl/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		log.NewLogger(os.Stderr).Error("failure running lobenginectl", "err", err)
		os.Exit(1)
	}
}
