// Package arq layers acknowledgement, timeout and retransmission over
// the framing package.
//
// A Sender emits a frame on the data channel, then waits for an ACK byte
// on a separate channel or for its timer to expire, and resends the same
// frame on timeout. A Receiver parses the data channel and answers every
// valid frame with an ACK. Malformed frames get no answer, so recovery
// relies entirely on the sender's timeout.
//
// Both are cooperative tasks: each Step performs at most one action and
// returns, so any number of links can share one scheduler loop.
package arq
