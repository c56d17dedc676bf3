// Command hostenroll registers the local machine as a host in Foreman.
//
// Usage:
//
//	# Register using /etc/hostenroll/hostenroll.yaml
//	hostenroll register
//
//	# Override the controller and hostgroup
//	hostenroll register --server https://foreman.example.com/api --hostgroup base/web
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
