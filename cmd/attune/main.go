// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Command attune is a conversational assistant that learns from its
// users: corrections become validated facts, stated preferences shape
// every later reply, and both persist in a local semantic store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
