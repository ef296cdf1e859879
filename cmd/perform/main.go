package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SplinteredSunlight/PerformanceSuite/internal/agent"
	"github.com/SplinteredSunlight/PerformanceSuite/internal/analysis"
	"github.com/SplinteredSunlight/PerformanceSuite/internal/anim"
	"github.com/SplinteredSunlight/PerformanceSuite/internal/audio"
	"github.com/SplinteredSunlight/PerformanceSuite/internal/config"
	"github.com/SplinteredSunlight/PerformanceSuite/internal/midigen"
	"github.com/SplinteredSunlight/PerformanceSuite/internal/session"
)

const (
	supervisorEvery = 100 * time.Millisecond
	statsEverySecs  = 5
)

// logger is the process-wide structured logger. Safe to use before
// initLogger is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(level slog.Level, addSource bool) {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath       string
		debug         bool
		listDevices   bool
		listMIDIPorts bool
	)
	cmd := &cobra.Command{
		Use:          "perform",
		Short:        "Listen to the room and play along: analysis, bandmate agents, MIDI, animation",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			level := cfg.LogLevel()
			if debug {
				level = slog.LevelDebug
			}
			initLogger(level, debug)

			if listDevices {
				return printDevices()
			}
			if listMIDIPorts {
				return printMIDIPorts()
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "config file (YAML); empty uses defaults plus PERFORM_* env")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging (adds source location)")
	cmd.Flags().BoolVar(&listDevices, "list-devices", false, "print audio input devices and exit")
	cmd.Flags().BoolVar(&listMIDIPorts, "list-midi-ports", false, "print MIDI output ports and exit")
	return cmd
}

func printDevices() error {
	drv, err := audio.NewPortAudioDriver()
	if err != nil {
		return err
	}
	defer drv.Close()

	devices, err := drv.Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("no audio input devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%3d  %-40s  %2d in  %6.0f Hz\n", d.ID, d.Name, d.MaxInputs, d.SampleRate)
	}
	return nil
}

func printMIDIPorts() error {
	ports := midigen.ListOutputs()
	if len(ports) == 0 {
		fmt.Println("no MIDI output ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func run(cfg *config.Config) error {
	logger.Info("performance suite starting",
		"sample_rate", cfg.Audio.SampleRate,
		"buffer_size", cfg.Audio.BufferSize,
		"channels", cfg.Audio.Channels,
		"analysis_mode", cfg.Audio.AnalysisMode,
		"update_rate_hz", cfg.Session.UpdateRate,
		"animation", cfg.Animation.Protocol,
	)

	drv, err := audio.NewPortAudioDriver()
	if err != nil {
		return fmt.Errorf("audio driver: %w", err)
	}
	defer drv.Close()

	input := audio.NewInput(audio.StreamConfig{
		SampleRate: cfg.Audio.SampleRate,
		BufferSize: cfg.Audio.BufferSize,
		Channels:   cfg.Audio.Channels,
		Device:     cfg.Audio.InputDevice,
	}, drv)
	if err := input.Start(); err != nil {
		return fmt.Errorf("audio input: %w", err)
	}

	sender, closeMIDI, err := midigen.OpenOutput(cfg.MIDI.OutputPort)
	if err != nil {
		logger.Warn("midi: no output available, running silent", "err", err)
		sender = midigen.NopSender()
		closeMIDI = func() {}
	}
	defer closeMIDI()

	sched := midigen.NewScheduler(sender)
	sched.Start()

	transport, err := openTransport(cfg.Animation)
	if err != nil {
		logger.Warn("anim: transport unavailable, animation disabled",
			"protocol", cfg.Animation.Protocol, "err", err)
		transport = nil
	}
	ctrl := anim.NewController(transport)

	analyzer := analysis.New(cfg.Audio.SampleRate, cfg.Audio.BufferSize,
		analysis.Mode(cfg.Audio.AnalysisMode))
	manager := session.NewManager(cfg.Session.UpdateRate)

	// Agents hear each tick before the animation controller does.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	enabled := 0
	for _, spec := range cfg.Agents {
		if !spec.Enabled {
			continue
		}
		a, err := agent.New(spec.Type, spec.Responsiveness, rng)
		if err != nil {
			return fmt.Errorf("agent: %w", err)
		}
		kind := a.Type()
		a.AddNoteListener(func(notes []agent.Note) {
			sched.ProcessNotes(notes)
			ctrl.AgentNotes(kind, notes)
		})
		manager.AddListener(a.OnContextUpdate)
		enabled++
		logger.Info("agent enabled", "type", kind, "responsiveness", spec.Responsiveness)
	}
	manager.AddListener(ctrl.OnContextUpdate)

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		analysisLoop(stop, input, analyzer, manager, cfg.Session.UpdateRate)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		superviseInput(stop, input)
	}()

	manager.Start()
	manager.Apply(session.Command{Type: session.CmdStart})

	logger.Info("running", "agents", enabled)

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
	sig := <-sigC
	logger.Info("shutting down", "signal", sig.String())

	close(stop)
	wg.Wait()

	input.Stop()
	manager.Stop()
	sched.Stop()
	if err := ctrl.Close(); err != nil {
		logger.Warn("anim: close failed", "err", err)
	}
	return nil
}

// openTransport builds the configured animation transport. Protocol
// "none" yields nil, which the controller treats as a no-op sink.
func openTransport(cfg config.Animation) (anim.Transport, error) {
	switch cfg.Protocol {
	case "osc":
		return anim.NewOSCTransport(cfg.Host, cfg.Port)
	case "jsonline":
		return anim.NewLineTransport(cfg.Host, cfg.Port)
	case "serial":
		return anim.NewSerialTransport(cfg.SerialDevice, cfg.Baud)
	default:
		return nil, nil
	}
}

// analysisLoop drains the capture ring at the update rate, runs feature
// extraction, and hands the snapshot to the session manager. Extraction
// may block briefly; it never does I/O.
func analysisLoop(stop <-chan struct{}, in *audio.Input, an *analysis.Analyzer,
	m *session.Manager, rateHz float64) {

	ticker := time.NewTicker(time.Duration(float64(time.Second) / rateHz))
	defer ticker.Stop()

	statsEvery := int(rateHz) * statsEverySecs
	if statsEvery < 1 {
		statsEvery = 1
	}

	var frame []float32
	ticks := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame = in.Drain(frame[:0])
			if len(frame) > 0 {
				m.UpdateFeatures(an.Analyze(frame))
			}
			ticks++
			if ticks%statsEvery == 0 {
				st := in.Stats()
				logger.Debug("audio: stats",
					"peak", st.Peak, "rms", st.RMS,
					"clipping", st.Clipping, "dropouts", st.Dropouts)
			}
		}
	}
}

// superviseInput restarts the capture stream if it stops underneath us.
// Failures back off until the next scan.
func superviseInput(stop <-chan struct{}, in *audio.Input) {
	ticker := time.NewTicker(supervisorEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if in.Running() {
				continue
			}
			logger.Warn("audio: input not running, restarting")
			in.MarkStopped()
			if err := in.Start(); err != nil {
				logger.Error("audio: restart failed", "err", err)
			}
		}
	}
}
