// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// ddcstat - WhisperPower DDC Genset Protocol Tool
//
// A CLI tool for monitoring and controlling WhisperPower gensets over the
// DDC serial protocol.

package main

import (
	"os"

	"github.com/Thermoquad/ddcstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
