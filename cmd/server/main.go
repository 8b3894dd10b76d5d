// Package main is the entry point for the social feed server.
//
// The binary is a cobra command tree:
//
//	server serve                      run the HTTP API (default)
//	server migrate                    apply the schema and exit
//	server user create --username u   create an account from the shell
//
// main stays minimal: read configuration, build the logger, hand off to
// internal/server. All actual logic lives in internal/.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
