// oscwatch prints the animation OSC stream so a rig can be debugged
// without the visual host attached.
package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/scgolang/osc"
	"github.com/spf13/cobra"
)

var watchAddresses = []string{
	"/tempo",
	"/intensity",
	"/section",
	"/beat",
	"/beat/strong",
	"/agent/drums/note",
	"/agent/drums/hit",
	"/agent/bass/note",
	"/agent/keys/note",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr       string
		statsEvery int
	)
	cmd := &cobra.Command{
		Use:          "oscwatch",
		Short:        "Print the performance suite's animation OSC stream",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(addr, statsEvery)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:12000", "UDP address to listen on")
	cmd.Flags().IntVar(&statsEvery, "stats-every", 100, "print rate statistics every N messages (0 disables)")
	return cmd
}

func watch(addr string, statsEvery int) error {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := osc.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	w := &watcher{
		statsEvery: statsEvery,
		startedAt:  time.Now(),
		perAddr:    map[string]int64{},
	}
	dispatcher := osc.PatternMatching{}
	for _, address := range watchAddresses {
		dispatcher[address] = osc.Method(w.print)
	}

	go func() {
		sigC := make(chan os.Signal, 1)
		signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
		<-sigC
		fmt.Println()
		w.summary()
		conn.Close()
	}()

	fmt.Printf("listening on %s\n", addr)
	if err := conn.Serve(1, dispatcher); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

type watcher struct {
	statsEvery int
	startedAt  time.Time

	mu      sync.Mutex
	total   int64
	perAddr map[string]int64
}

func (w *watcher) print(msg osc.Message) error {
	parts := make([]string, 0, len(msg.Arguments))
	for _, a := range msg.Arguments {
		parts = append(parts, formatArg(a))
	}

	w.mu.Lock()
	w.total++
	w.perAddr[msg.Address]++
	total := w.total
	w.mu.Unlock()

	fmt.Printf("%-18s %s\n", msg.Address, strings.Join(parts, " "))
	if w.statsEvery > 0 && total%int64(w.statsEvery) == 0 {
		elapsed := time.Since(w.startedAt).Seconds()
		if elapsed > 0 {
			fmt.Printf("-- %d messages, %.1f msg/s\n", total, float64(total)/elapsed)
		}
	}
	return nil
}

func (w *watcher) summary() {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := time.Since(w.startedAt).Seconds()
	fmt.Printf("received %d messages in %.1fs\n", w.total, elapsed)

	addrs := make([]string, 0, len(w.perAddr))
	for a := range w.perAddr {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)
	for _, a := range addrs {
		fmt.Printf("  %-18s %d\n", a, w.perAddr[a])
	}
}

func formatArg(a osc.Argument) string {
	switch a.Typetag() {
	case 'f':
		v, err := a.ReadFloat32()
		if err != nil {
			return "?"
		}
		return strconv.FormatFloat(float64(v), 'f', 3, 32)
	case 'i':
		v, err := a.ReadInt32()
		if err != nil {
			return "?"
		}
		return strconv.FormatInt(int64(v), 10)
	case 's':
		v, err := a.ReadString()
		if err != nil {
			return "?"
		}
		return v
	default:
		return a.String()
	}
}
