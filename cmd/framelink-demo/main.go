package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"log"

	"github.com/robotalks/framelink/pkg/arq"
	"github.com/robotalks/framelink/pkg/env"
	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/framing"
)

var (
	payload  = "HELLO"
	corrupt  = 1
	maxPass  = 10000
	variant  = framing.Extended.Name
	maxTries int
)

func init() {
	flag.StringVar(&payload, "payload", payload, "Payload to deliver.")
	flag.IntVar(&corrupt, "corrupt", corrupt, "Number of leading frames with a corrupted checksum.")
	flag.IntVar(&maxPass, "passes", maxPass, "Max scheduler passes.")
	flag.StringVar(&variant, "variant", variant, "Protocol variant.")
	flag.IntVar(&maxTries, "max-attempts", maxTries, "Max transmissions, 0 for unlimited.")
}

// corruptingSink flips the checksum byte of the first frames.
type corruptingSink struct {
	sink      framing.ByteSink
	frameSize int
	frames    int
	pos       int
}

func (s *corruptingSink) TryPut(b byte) bool {
	frame := s.pos / s.frameSize
	if frame < s.frames && s.pos%s.frameSize == s.frameSize-2 {
		b ^= 0xff
	}
	if !s.sink.TryPut(b) {
		return false
	}
	s.pos++
	return true
}

func main() {
	flag.Parse()

	conf := env.NewConfig()
	conf.Variant = variant
	v := conf.MustFramingVariant()
	data := []byte(payload)
	if len(data) > v.MaxPayload {
		log.Fatalln(framing.ErrPayloadTooLarge)
	}

	var dataCh, ackCh framing.Slot
	sink := &corruptingSink{sink: &dataCh, frameSize: v.FrameSize(len(data)), frames: corrupt}
	sender := arq.NewSender(v, sink, &ackCh, arq.Options{MaxAttempts: maxTries})
	receiver := arq.NewReceiver(v, &dataCh, &ackCh, arq.HandlePayloadFunc(func(p []byte, now framing.Tick) {
		fmt.Printf("received %q at tick %d\n", p, now)
	}))
	receiver.Once = true

	if err := sender.Send(data); err != nil {
		log.Fatalln(err)
	}
	loop := fx.NewLoop().AddTask(sender, receiver)
	passes := loop.RunPasses(maxPass)

	stats := receiver.Stats()
	fmt.Printf("variant:   %s\n", v)
	fmt.Printf("outcome:   %s\n", sender.Outcome())
	fmt.Printf("attempts:  %d\n", sender.Attempts())
	fmt.Printf("ticks:     %d\n", passes)
	fmt.Printf("rejected:  %d (checksum %d)\n", stats.Errors(), stats.ChecksumMismatches)
}
