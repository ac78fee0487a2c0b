package arq

import "github.com/robotalks/framelink/pkg/framing"

// DefaultTimeout is the ACK timeout in ticks.
const DefaultTimeout framing.Tick = 5

// Options configures a Sender.
type Options struct {
	// Timeout is the number of ticks to wait for an ACK after the last
	// byte of a frame is emitted.
	Timeout framing.Tick
	// MaxAttempts bounds the number of transmissions. 0 means retry
	// until acknowledged.
	MaxAttempts int
}

func (o Options) timeout() framing.Tick {
	if o.Timeout == 0 {
		return DefaultTimeout
	}
	return o.Timeout
}
