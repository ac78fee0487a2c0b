package main

//go-build: CGO_ENABLED=0

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/framelink/pkg/arq"
	"github.com/robotalks/framelink/pkg/capture"
	"github.com/robotalks/framelink/pkg/env"
	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/framing"
	"github.com/robotalks/framelink/pkg/link"
)

var (
	mode        = "recv"
	captureFile string
	replayFile  string
	quiet       bool

	sendErr error
)

func init() {
	env.SetupFlags()
	flag.StringVar(&mode, "mode", mode, "Role of the link: send or recv.")
	flag.StringVar(&captureFile, "capture", captureFile, "Append received payloads to the capture file.")
	flag.StringVar(&replayFile, "replay", replayFile, "Send payloads from a capture file instead of stdin.")
	flag.BoolVar(&quiet, "q", quiet, "Do not print payloads.")
}

func main() {
	flag.Parse()

	role, err := link.ParseRole(mode)
	if err != nil {
		log.Fatalf("invalid mode %q", mode)
	}

	conf := env.Default()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := fx.NewRunnerWith(ctx).HandleSignals()
	loop := conf.NewLoop()

	var handlers arq.PayloadHandlers
	if role == link.RoleRecv {
		if !quiet {
			handlers = append(handlers, arq.HandlePayloadFunc(printPayload))
		}
		if captureFile != "" {
			f, err := os.OpenFile(captureFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
			if err != nil {
				log.Fatalln(err)
			}
			defer f.Close()
			handlers = append(handlers, capture.NewWriter(f))
		}
	}

	ep := conf.MustNewEndpoint(role, handlers)
	loop.Add(ep)
	if bridge := conf.MustNewBridge(ep); bridge != nil {
		if role == link.RoleRecv {
			ep.SetHandler(append(handlers, bridge))
		}
		loop.Add(bridge)
	} else if role == link.RoleSend {
		loop.AddRunnable(fx.RunFunc(func(ctx context.Context) error {
			sendErr = sendAll(ctx, ep)
			cancel()
			return sendErr
		}))
	}

	runner.Go(loop)
	err = runner.Wait()
	if err == nil {
		err = sendErr
	}
	glog.Flush()
	if err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}

func printPayload(payload []byte, now framing.Tick) {
	fmt.Printf("%d %s\n", now, hex.EncodeToString(payload))
}

func sendAll(ctx context.Context, ep *link.Endpoint) error {
	payloads := make(chan []byte)
	errCh := make(chan error, 1)
	go func() {
		defer close(payloads)
		errCh <- readPayloads(payloads)
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-payloads:
			if !ok {
				return <-errCh
			}
			result := ep.Send(payload).Wait()
			if result.Err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if result.Err != nil {
				return fmt.Errorf("send %q: %v after %d attempt(s)", payload, result.Err, result.Attempts)
			}
			if !quiet {
				fmt.Printf("sent %d byte(s) in %d attempt(s)\n", len(payload), result.Attempts)
			}
		}
	}
}

func readPayloads(out chan<- []byte) error {
	if replayFile != "" {
		f, err := os.Open(replayFile)
		if err != nil {
			return err
		}
		defer f.Close()
		records, err := capture.ReadAll(f)
		for _, rec := range records {
			out <- rec.Payload
		}
		return err
	}
	r := bufio.NewReader(os.Stdin)
	for {
		line, err := r.ReadBytes('\n')
		if n := len(line); n > 0 && line[n-1] == '\n' {
			line = line[:n-1]
		}
		if len(line) > 0 {
			out <- line
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
