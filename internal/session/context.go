// Package session owns the shared musical context and advances it on a
// fixed-rate clock. The tick goroutine is the only writer; everything
// else talks to it through commands and feature snapshots.
package session

import (
	"fmt"

	"github.com/SplinteredSunlight/PerformanceSuite/internal/analysis"
)

// Song sections the agents know patterns for.
const (
	SectionIntro  = "intro"
	SectionVerse  = "verse"
	SectionChorus = "chorus"
	SectionBridge = "bridge"
	SectionOutro  = "outro"
)

var sections = map[string]bool{
	SectionIntro:  true,
	SectionVerse:  true,
	SectionChorus: true,
	SectionBridge: true,
	SectionOutro:  true,
}

// ValidSection reports whether name is a known song section.
func ValidSection(name string) bool { return sections[name] }

// TimeSignature is beats per bar over the beat unit.
type TimeSignature struct {
	Beats int
	Unit  int
}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Beats, ts.Unit)
}

// Context is the musical state every component reads. Values passed to
// listeners are copies; mutating them has no effect on the session.
type Context struct {
	Tempo        float64
	Key          string
	Chord        string
	Progression  []string
	Dynamics     float64
	Section      string
	BeatPosition float64
	Bar          int
	TimeSig      TimeSignature
	Playing      bool
}

// DefaultContext is the state before any audio or commands arrive.
func DefaultContext() Context {
	return Context{
		Tempo:       120,
		Key:         "C",
		Chord:       "C",
		Progression: []string{"C"},
		Dynamics:    0.5,
		Section:     SectionVerse,
		Bar:         1,
		TimeSig:     TimeSignature{Beats: 4, Unit: 4},
	}
}

const (
	minTempo = 20.0
	maxTempo = 300.0

	progressionMax = 16
)

// CmdType enumerates the control commands.
type CmdType int

const (
	CmdStart CmdType = iota
	CmdStop
	CmdTempo
	CmdSection
	CmdKey
	CmdChord
)

func (c CmdType) String() string {
	switch c {
	case CmdStart:
		return "start"
	case CmdStop:
		return "stop"
	case CmdTempo:
		return "tempo"
	case CmdSection:
		return "section"
	case CmdKey:
		return "key"
	case CmdChord:
		return "chord"
	}
	return "unknown"
}

// Command is one control message. Only the field matching Type is read.
type Command struct {
	Type    CmdType
	Tempo   float64
	Section string
	Key     string
	Chord   string
}

// validKey reports whether name is one of the twelve pitch classes.
func validKey(name string) bool {
	_, ok := analysis.PitchClass(name)
	return ok
}
