// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// stdLogger adapts the standard logger to ddc.Logger
type stdLogger struct {
	l *log.Logger
}

func newStdLogger() *stdLogger {
	return &stdLogger{l: log.New(os.Stderr, "ddc: ", log.LstdFlags|log.Lmicroseconds)}
}

func (s *stdLogger) Debug(msg string, kv ...interface{}) { s.print("DEBUG", msg, kv) }
func (s *stdLogger) Info(msg string, kv ...interface{})  { s.print("INFO", msg, kv) }
func (s *stdLogger) Error(msg string, kv ...interface{}) { s.print("ERROR", msg, kv) }

func (s *stdLogger) print(level, msg string, kv []interface{}) {
	s.l.Printf("%-5s %s%s", level, msg, formatKV(kv))
}

// formatKV renders key-value pairs as " key=value key=value"
func formatKV(kv []interface{}) string {
	var sb strings.Builder
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			fmt.Fprintf(&sb, " %v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&sb, " %v", kv[i])
		}
	}
	return sb.String()
}
