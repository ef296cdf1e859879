package midigen

import (
	"errors"
	"fmt"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// ListOutputs names every MIDI output port the driver can see.
func ListOutputs() []string {
	outs := midi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, o := range outs {
		names = append(names, o.String())
	}
	return names
}

// OpenOutput connects to the named output port, falling back to the
// first available one when the name is empty or not found. The returned
// closer shuts down the port and the driver.
func OpenOutput(name string) (Sender, func(), error) {
	var out drivers.Out
	if name != "" {
		o, err := midi.FindOutPort(name)
		if err != nil {
			slog.Warn("midi: named port not found, using first available", "port", name, "err", err)
		} else {
			out = o
		}
	}
	if out == nil {
		outs := midi.GetOutPorts()
		if len(outs) == 0 {
			return nil, nil, errors.New("midi: no output ports available")
		}
		out = outs[0]
	}

	send, err := midi.SendTo(out)
	if err != nil {
		return nil, nil, fmt.Errorf("midi: open %q: %w", out.String(), err)
	}
	closer := func() {
		_ = out.Close()
		midi.CloseDriver()
	}
	slog.Info("midi: output connected", "port", out.String())
	return Sender(send), closer, nil
}
