package sensor

import (
	"regexp"
	"strconv"
	"strings"
)

type Kind uint8

const (
	Ignored Kind = iota
	Pulse
	StateChange
	Count
)

func (k Kind) String() string {
	switch k {
	case Pulse:
		return "pulse"
	case StateChange:
		return "state"
	case Count:
		return "count"
	default:
		return "ignored"
	}
}

// Event is one decoded serial line. Player is 1-based.
type Event struct {
	Kind     Kind
	Player   int
	Seq      int  // Pulse: firmware counter; Count: total
	Pedaling bool // StateChange
	Reason   string
}

type rule struct {
	name  string
	match func(line string) (Event, bool)
}

// marker matches "Jogador N" or the compact "JN:" anywhere in a line and
// captures the label in group 1 or 2.
const marker = `(?:Jogador\s+(\S+?):?\s|\bJ(\d+):)`

var (
	// "Jogador 2: Pedalada: True", "J2: Pedalada: True"
	stateRe = regexp.MustCompile(marker + `.*(?i:pedalada):\s*(True|False)`)
	// "🔍 Jogador 1: Pedalada #12 detectada", "✅ J1: PEDALADA #12"
	pulseRe = regexp.MustCompile(marker + `.*(?i:pedalada)\s*#\s*(\S+)`)
	// "Jogador 3: Total de pedaladas: 57"
	totalRe = regexp.MustCompile(marker + `.*Total de pedaladas:\s*(\S+)`)
	// ESP32 "P1:1" / "P1:0"
	compactStateRe = regexp.MustCompile(`^P(\d+):\s*([01])$`)
	// "J1:10", "🔍 J3:7"
	compactPulseRe = regexp.MustCompile(`\bJ(\d+):\s*(\S+)`)
)

// rules are tried in order; the first match decides the event.
var rules = []rule{
	{"state", matchState},
	{"pulse", matchPulse},
	{"total", matchTotal},
	{"compact-state", matchCompactState},
	{"compact-pulse", matchCompactPulse},
}

// Parse turns one raw serial line into an event. It never fails: lines that
// match no rule, name an unknown player or carry a non-numeric counter come
// back as Ignored with a Reason.
func Parse(line string) Event {
	line = Clean(line)
	if line == "" {
		return Event{Kind: Ignored, Reason: "empty"}
	}
	for _, r := range rules {
		if ev, ok := r.match(line); ok {
			return ev
		}
	}
	return Event{Kind: Ignored, Reason: "no rule"}
}

// Clean drops invalid UTF-8 and surrounding whitespace.
func Clean(line string) string {
	return strings.TrimSpace(strings.ToValidUTF8(line, ""))
}

func matchState(line string) (Event, bool) {
	m := stateRe.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	l := label(m)
	p, ok := player(l)
	if !ok {
		return ignored("unknown player " + l), true
	}
	return Event{Kind: StateChange, Player: p, Pedaling: m[len(m)-1] == "True"}, true
}

func matchPulse(line string) (Event, bool) {
	return counted(pulseRe, Pulse, line)
}

func matchTotal(line string) (Event, bool) {
	return counted(totalRe, Count, line)
}

func matchCompactState(line string) (Event, bool) {
	m := compactStateRe.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	p, ok := player(m[1])
	if !ok {
		return ignored("unknown player " + m[1]), true
	}
	return Event{Kind: StateChange, Player: p, Pedaling: m[2] == "1"}, true
}

func matchCompactPulse(line string) (Event, bool) {
	return counted(compactPulseRe, Pulse, line)
}

func counted(re *regexp.Regexp, kind Kind, line string) (Event, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	l := label(m)
	p, ok := player(l)
	if !ok {
		return ignored("unknown player " + l), true
	}
	v := m[len(m)-1]
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return ignored("bad counter " + strconv.Quote(v)), true
	}
	return Event{Kind: kind, Player: p, Seq: n}, true
}

// label is the first non-empty marker group; the last group is the value.
func label(m []string) string {
	for _, g := range m[1 : len(m)-1] {
		if g != "" {
			return g
		}
	}
	return ""
}

// player resolves the marker against the fixed labels 1..4.
func player(label string) (int, bool) {
	switch label {
	case "1":
		return 1, true
	case "2":
		return 2, true
	case "3":
		return 3, true
	case "4":
		return 4, true
	}
	return 0, false
}

func ignored(reason string) Event {
	return Event{Kind: Ignored, Reason: reason}
}
