// Command duesctl runs dues reports and ledger checks against the database
// without going through the HTTP API.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
