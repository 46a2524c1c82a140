package core

import "fmt"

// Settings contains all configurable properties of a ping run.
type Settings struct {
	// Port is the UDP port the echo server listens on.
	Port int

	// Count is the number of echo requests to send. A count of zero is
	// accepted and yields an empty, zero-loss report.
	Count int

	// PayloadSize is the number of payload bytes carried by each request,
	// echoed back verbatim by the server.
	PayloadSize int

	// Period is the time in milliseconds between the start of one send and
	// the start of the next.
	Period int

	// Timeout is the time in milliseconds to wait for each reply before the
	// probe is counted as lost.
	Timeout int

	// LoggingLevel is the level used by the session logger, mapping to
	// logrus levels.
	LoggingLevel uint32
}

// DefaultSettings returns the default settings for a ping run, change as you wish.
func DefaultSettings() *Settings {
	return &Settings{
		Port:         7777,
		Count:        10,
		PayloadSize:  8,
		Period:       1000,
		Timeout:      1000,
		LoggingLevel: 3,
	}
}

func (s *Settings) validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be in [1, 65535], got %d", s.Port)
	}
	if s.Count < 0 {
		return fmt.Errorf("count must be non-negative, got %d", s.Count)
	}
	if s.Count > maxSequences {
		return fmt.Errorf("count must be at most %d, got %d", maxSequences, s.Count)
	}
	if s.PayloadSize < 0 || s.PayloadSize > maxPayloadLength {
		return fmt.Errorf("payload size must be in [0, %d], got %d", maxPayloadLength, s.PayloadSize)
	}
	if s.Period < 0 {
		return fmt.Errorf("period must be non-negative, got %d ms", s.Period)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d ms", s.Timeout)
	}
	return nil
}
