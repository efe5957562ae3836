package cmd

import "cosmossdk.io/log"

func testNopLogger() log.Logger {
	return log.NewNopLogger()
}
