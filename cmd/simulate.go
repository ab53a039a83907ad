// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	"github.com/spf13/cobra"
)

var (
	simInterval         int
	simKeepAliveTimeout int
	simRPM              int
	simRuntimeHours     int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Act as a WhisperPower genset on the link",
	Long: `Simulate the genset side of the DDC protocol.

GENERATOR_STATE and RUNTIME_STATE frames are sent every --interval
milliseconds, addressed to --self-addr from --peer-addr. A START frame starts
the simulated engine, STOP stops it, and the engine stops by itself when no
START or KEEP_ALIVE arrives within --keepalive-timeout seconds.

Run time counters advance while the engine runs.

Useful for exercising the control command without a genset: connect two
serial adapters back to back, or use a WebSocket bridge.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVar(&simInterval, "interval", 1000, "Telemetry interval (milliseconds)")
	simulateCmd.Flags().IntVar(&simKeepAliveTimeout, "keepalive-timeout", 10, "Stop after this many seconds without keep-alive (0 disables)")
	simulateCmd.Flags().IntVar(&simRPM, "rpm", 3000, "Engine speed while running")
	simulateCmd.Flags().IntVar(&simRuntimeHours, "runtime-hours", 0, "Initial run time counters (hours)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simInterval <= 0 {
		return fmt.Errorf("--interval must be positive, got %d", simInterval)
	}

	self, peer, err := busAddresses()
	if err != nil {
		return err
	}

	cfg := ddc.DefaultSimulatorConfig()
	cfg.Self = self
	cfg.Peer = peer
	cfg.KeepAliveTimeout = time.Duration(simKeepAliveTimeout) * time.Second
	cfg.RunningRPM = simRPM
	cfg.Total = time.Duration(simRuntimeHours) * time.Hour
	cfg.Historical = cfg.Total
	sim := ddc.NewSimulator(cfg)

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("ddcstat - Genset Simulator\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Genset %s -> controller %s, every %dms\n", peer, self, simInterval)
	if cfg.KeepAliveTimeout > 0 {
		fmt.Printf("Keep-alive timeout: %s\n", ddc.FormatDuration(cfg.KeepAliveTimeout))
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// Reader goroutine feeds control frames to the simulator
	readerErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if errors.Is(err, ErrConnectionClosed) {
					readerErr <- err
					return
				}
				log.Printf("Read error: %v", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			for _, code := range sim.Feed(buf[:n]) {
				if code != ddc.ControlKeepAlive || verbose {
					fmt.Printf("[%s] RX %s\n", time.Now().Format("15:04:05.000"), ddc.FormatControlCode(code))
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	ticker := time.NewTicker(time.Duration(simInterval) * time.Millisecond)
	defer ticker.Stop()

	running := false
	for {
		select {
		case <-ticker.C:
			for _, frame := range sim.Tick() {
				if _, err := conn.Write(frame); err != nil {
					return fmt.Errorf("failed to send telemetry: %w", err)
				}
			}

			state := sim.State()
			if state.Running != running {
				running = state.Running
				if running {
					fmt.Printf("[%s] Engine running at %d RPM\n", time.Now().Format("15:04:05.000"), state.RPM)
				} else {
					fmt.Printf("[%s] Engine stopped (total %s)\n", time.Now().Format("15:04:05.000"), ddc.FormatDuration(state.Total))
				}
			}

		case err := <-readerErr:
			return err

		case <-sig:
			state := sim.State()
			fmt.Printf("\nControl frames: %d, rejected: %d\n", state.ControlFrames, state.Rejected)
			return nil
		}
	}
}
