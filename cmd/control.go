// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	controlStart    bool
	controlStop     bool
	controlHeadless bool
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Start, stop and keep alive a WhisperPower genset",
	Long: `Run the DDC controller against the link.

Every valid frame from the genset drives the control state machine. While a
start command is latched, the controller answers with START until the genset
reports running and with KEEP_ALIVE afterwards. A latched stop sends STOP until
the genset reports stopped. Nothing is sent before the first GENERATOR_STATE
frame has told the controller whether the engine is running.

--start or --stop latch the initial command. Without --headless an interactive
terminal UI opens:
  s  latch start
  x  latch stop
  q  quit

The latched command survives link loss; the connection is re-opened with
exponential backoff and control resumes on the next frame.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().BoolVar(&controlStart, "start", false, "Latch start on launch")
	controlCmd.Flags().BoolVar(&controlStop, "stop", false, "Latch stop on launch")
	controlCmd.Flags().BoolVar(&controlHeadless, "headless", false, "Print events instead of opening the TUI")
	controlCmd.MarkFlagsMutuallyExclusive("start", "stop")
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	driver   *ddc.Driver
	send     func(tea.Msg)
	done     chan struct{}
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

func runControl(cmd *cobra.Command, args []string) error {
	driver, err := newDriver()
	if err != nil {
		return err
	}
	switch {
	case controlStart:
		driver.SetCommand(true)
	case controlStop:
		driver.SetCommand(false)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	cm := &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		driver:   driver,
		done:     make(chan struct{}),
	}

	if controlHeadless {
		return runControlHeadless(cm)
	}

	m := initialControlModel(cm, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.send = p.Send

	go cm.readerLoop()

	if _, err := p.Run(); err != nil {
		close(cm.done)
		cm.getConn().Close()
		return fmt.Errorf("TUI error: %w", err)
	}

	close(cm.done)
	cm.getConn().Close()
	return nil
}

// runControlHeadless prints driver events until interrupted
func runControlHeadless(cm *connectionManager) error {
	fmt.Printf("ddcstat - Control Mode\n")
	fmt.Printf("Connection: %s\n", cm.connInfo)
	fmt.Printf("Command: %s\n", cm.driver.State().Desired)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	h := &headlessPrinter{stats: ddc.NewStatistics()}
	events := make(chan tea.Msg, 16)
	cm.send = func(msg tea.Msg) { events <- msg }

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	go cm.readerLoop()

	for {
		select {
		case msg := <-events:
			h.handle(msg)
		case <-sig:
			close(cm.done)
			if conn := cm.getConn(); conn != nil {
				conn.Close()
			}
			fmt.Println()
			fmt.Print(h.stats.String())
			return nil
		}
	}
}

// headlessPrinter renders control messages as text
type headlessPrinter struct {
	stats *ddc.Statistics
}

func (h *headlessPrinter) handle(msg tea.Msg) {
	switch msg := msg.(type) {
	case controlBatchMsg:
		if msg.syncMsg != nil {
			printSync(msg.syncMsg.skipped)
		}
		for _, data := range msg.messages {
			h.handleData(data)
		}
	case connectionLostMsg:
		log.Printf("Connection lost - reconnecting...")
	case reconnectedMsg:
		log.Printf("Reconnected: %s", msg.connInfo)
	}
}

func (h *headlessPrinter) handleData(data controlDataMsg) {
	res := data.result
	h.stats.Update(res, data.anomalies)

	if !res.Valid() {
		fmt.Printf("[%s] %s: %v\n", time.Now().Format("15:04:05.000"), res.Status, res.Reject)
		return
	}

	if gs, ok := res.Telemetry.(*ddc.GeneratorState); ok {
		fmt.Printf("[%s] RPM: %d, Running: %t, Status: %s\n",
			gs.Timestamp.Format("15:04:05.000"), gs.RPM, gs.Running, gs.GeneratorStatus)
	}
	for _, a := range data.anomalies {
		fmt.Printf("  %s: %s\n", a.Type, a.Message)
	}
	if res.Outbound != nil {
		h.stats.RecordSent(res.Control, data.writeErr)
		if data.writeErr != nil {
			fmt.Printf("  TX %s failed: %v\n", ddc.FormatControlCode(res.Control), data.writeErr)
		} else {
			fmt.Printf("  TX %s\n", ddc.FormatControlCode(res.Control))
		}
	}
}

func printSync(skipped int) {
	if skipped > 0 {
		fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", skipped)
	} else {
		fmt.Printf("[SYNC] Synchronized\n\n")
	}
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		connLost := cm.readFromConnection()

		if connLost {
			cm.send(connectionLostMsg{})

			if !cm.reconnect() {
				return // Shutdown requested during reconnect
			}
		}
	}
}

// readFromConnection runs the driver over the connection until it fails.
// Control frames are written back from the reader goroutine in frame order.
// Returns true if connection was lost, false if shutdown requested
func (cm *connectionManager) readFromConnection() bool {
	stream := ddc.NewStream(cm.driver)
	synchronized := false
	skippedBeforeSync := 0

	batchChan := make(chan controlDataMsg, 100)
	syncChan := make(chan controlSyncMsg, 1)
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		buf := make([]byte, 128)
		for {
			select {
			case <-cm.done:
				return
			default:
			}

			conn := cm.getConn()
			if conn == nil {
				return
			}

			n, err := conn.Read(buf)
			if err != nil {
				select {
				case <-cm.done:
					return
				default:
					if errors.Is(err, ErrConnectionClosed) {
						return
					}
					time.Sleep(10 * time.Millisecond)
					continue
				}
			}

			results, err := stream.Feed(buf[:n])
			if err != nil {
				log.Printf("Driver error: %v", err)
			}

			for _, res := range results {
				if !synchronized {
					if !res.Valid() {
						skippedBeforeSync += res.Consumed
						continue
					}
					synchronized = true
					select {
					case syncChan <- controlSyncMsg{skipped: skippedBeforeSync}:
					default:
					}
				}

				data := controlDataMsg{result: res}
				if res.Valid() {
					data.anomalies = ddc.CheckTelemetry(res.Telemetry)
				}
				if res.Outbound != nil {
					_, data.writeErr = conn.Write(res.Outbound)
				}

				select {
				case batchChan <- data:
				default:
				}
			}
		}
	}()

	// Batch sender goroutine - sends batched updates at fixed rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-readerDone:
				return
			case <-ticker.C:
				var batch controlBatchMsg

				select {
				case sync := <-syncChan:
					batch.syncMsg = &sync
				default:
				}

			drainLoop:
				for {
					select {
					case msg := <-batchChan:
						batch.messages = append(batch.messages, msg)
					default:
						break drainLoop
					}
				}

				if batch.syncMsg != nil || len(batch.messages) > 0 {
					cm.send(batch)
				}
			}
		}
	}()

	<-readerDone

	select {
	case <-cm.done:
		return false
	default:
		return true // Connection lost
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
