package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is a single Server-Sent Event.
type Event struct {
	// Type is the "event:" field, empty for the default message type.
	Type string
	// Data joins the event's "data:" lines with newlines.
	Data string
}

// Scanner reads Server-Sent Events from an io.Reader.
//
// Events end at a blank line. Comment lines (starting with ":") and
// fields other than "data" and "event" are ignored.
//
//	scanner := sse.NewScanner(r)
//	for scanner.Next() {
//	    ev := scanner.Event()
//	}
//	if err := scanner.Err(); err != nil {
//	    // handle error
//	}
type Scanner struct {
	reader  *bufio.Reader
	current Event
	err     error
}

// NewScanner creates a scanner that reads events from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next event. It returns false at end of stream or
// on error; Err tells the two apart.
func (s *Scanner) Next() bool {
	s.current = Event{}
	if s.err != nil {
		return false
	}

	var data []string
	var eventType string
	hasData := false

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			s.err = err
			if err == io.EOF && hasData {
				// Final event without a terminating blank line.
				s.current = Event{Type: eventType, Data: strings.Join(data, "\n")}
				return true
			}
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				s.current = Event{Type: eventType, Data: strings.Join(data, "\n")}
				return true
			}
			eventType = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			field, value = line, ""
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			eventType = value
		}
	}
}

// Event returns the event read by the last successful call to Next.
func (s *Scanner) Event() Event {
	return s.current
}

// Err returns the first non-EOF error encountered.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
