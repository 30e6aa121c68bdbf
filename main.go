// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Sambamock - SAM-BA Bootloader Emulator
//
// A CLI tool that answers a flashing tool the way a SAM-BA bootloader
// monitor does, and drives real monitors from the host side.

package main

import (
	"os"

	"github.com/Thermoquad/sambamock/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
