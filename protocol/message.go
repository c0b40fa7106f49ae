package protocol

import "time"

// Frame is a completed frame read off the stream. Fields are already
// unescaped, Fields[0] holds the command id as decimal text.
type Frame struct {
	Fields [][]byte
	Raw    []byte
	Time   time.Time
}

// ReceivedMessage is a fully decoded frame.
type ReceivedMessage struct {
	Command string        `json:"command"`
	ID      int           `json:"id"`
	Values  []interface{} `json:"values"`
	Formats Formats       `json:"formats"`
	Time    time.Time     `json:"time"`

	// Raw holds the frame exactly as it was received, separators included
	Raw []byte `json:"-"`
}

// Known reports whether the command id was found in the command table.
func (m *ReceivedMessage) Known() bool {
	return m.Command != UnknownName
}
