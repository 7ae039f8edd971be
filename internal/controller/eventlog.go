package controller

import "time"

const eventLogCapacity = 20

// Event is one entry in a pair's bounded event log.
type Event struct {
	Time    time.Time `json:"time"`
	Type    string    `json:"type"`
	Result  string    `json:"result"`
	Message string    `json:"message"`
}

// eventLog is a fixed-capacity ring of the most recent events.
type eventLog struct {
	entries [eventLogCapacity]Event
	next    int
	count   int
}

func (l *eventLog) add(e Event) {
	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.count < len(l.entries) {
		l.count++
	}
}

// list returns the logged events, oldest first.
func (l *eventLog) list() []Event {
	out := make([]Event, 0, l.count)
	start := (l.next - l.count + len(l.entries)) % len(l.entries)
	for i := range l.count {
		out = append(out, l.entries[(start+i)%len(l.entries)])
	}
	return out
}
