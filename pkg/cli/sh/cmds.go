package sh

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/framelink/pkg/framing"
	"github.com/robotalks/framelink/pkg/link"
)

// ParsePayload parses command arguments. Arguments starting with 0x are
// decoded as hex, e.g. "0x4142 0x43", otherwise they are joined as text.
func ParsePayload(args []string) ([]byte, error) {
	if len(args) > 0 && strings.HasPrefix(args[0], "0x") {
		var payload []byte
		for _, arg := range args {
			if !strings.HasPrefix(arg, "0x") {
				return nil, fmt.Errorf("invalid hex %q", arg)
			}
			data, err := hex.DecodeString(arg[2:])
			if err != nil {
				return nil, fmt.Errorf("invalid hex %q: %v", arg, err)
			}
			payload = append(payload, data...)
		}
		return payload, nil
	}
	return []byte(strings.Join(args, " ")), nil
}

// FormatHex formats bytes as space separated hex.
func FormatHex(data []byte) string {
	items := make([]string, len(data))
	for n, b := range data {
		items[n] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(items, " ")
}

// FormatStats formats Stats for display.
func FormatStats(s link.Stats) string {
	var lines []string
	lines = append(lines,
		fmt.Sprintf("role:      %s", s.Role),
		fmt.Sprintf("variant:   %s", s.Variant),
		fmt.Sprintf("bytes:     rx %d tx %d", s.RxBytes, s.TxBytes))
	switch s.Role {
	case link.RoleSend:
		lines = append(lines,
			fmt.Sprintf("pending:   %d", s.Pending),
			fmt.Sprintf("delivered: %d", s.Delivered),
			fmt.Sprintf("exhausted: %d", s.Exhausted),
			fmt.Sprintf("attempts:  %d", s.Attempts),
			fmt.Sprintf("stale:     %d", s.StaleAcks))
	case link.RoleRecv:
		lines = append(lines,
			fmt.Sprintf("received:  %d", s.Received),
			fmt.Sprintf("discarded: %d", s.Parser.Discarded),
			fmt.Sprintf("errors:    %d (length %d, overrun %d, checksum %d, framing %d)",
				s.Parser.Errors(), s.Parser.LengthOverflows, s.Parser.BufferOverruns,
				s.Parser.ChecksumMismatches, s.Parser.FramingErrors))
	}
	return strings.Join(lines, "\n")
}

// FormatVariant formats a Variant for display.
func FormatVariant(v framing.Variant) string {
	return fmt.Sprintf("%s: max payload %d, checksum %s, check %s",
		v.Name, v.MaxPayload, v.Checksum, v.CheckMode)
}

type sendInfo struct {
	Size     int `json:"size"`
	Attempts int `json:"attempts"`
}

type variantInfo struct {
	Name       string `json:"name"`
	MaxPayload int    `json:"max-payload"`
	Checksum   string `json:"checksum"`
	CheckMode  string `json:"check-mode"`
}

var (
	// ConnectCmd connects a stream.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "URL",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			url := s.Config.URL
			if len(c.Args) > 0 {
				url = c.Args[0]
			}
			if err := s.Connect(url); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current stream.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// SendCmd sends a payload and waits for the acknowledgement.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "0xHEX... | TEXT...",
		Func: MustBeConnected(func(c *ishell.Context) {
			payload, err := ParsePayload(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			result, err := s.Send(payload)
			if err != nil {
				c.Err(fmt.Errorf("%v after %d attempt(s)", err, result.Attempts))
				return
			}
			s.Print(c, &sendInfo{Size: len(payload), Attempts: result.Attempts},
				fmt.Sprintf("OK %d attempt(s)", result.Attempts))
		}),
	}

	// StatsCmd prints link counters.
	StatsCmd = ishell.Cmd{
		Name:    "stats",
		Aliases: []string{"st"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			stats := s.Link.Endpoint.Stats()
			s.Print(c, stats, FormatStats(stats))
		}),
	}

	// VariantCmd shows or selects the protocol variant used by the
	// next connect.
	VariantCmd = ishell.Cmd{
		Name:    "variant",
		Aliases: []string{"v"},
		Help:    "[standard|extended]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				if _, err := framing.VariantByName(c.Args[0]); err != nil {
					c.Err(fmt.Errorf("%v: %q", err, c.Args[0]))
					return
				}
				s.Config.Variant = c.Args[0]
			}
			v, err := s.Config.FramingVariant()
			if err != nil {
				c.Err(err)
				return
			}
			if s.Link != nil && s.Link.Endpoint.Variant().Name != v.Name {
				c.Println("variant applies on next connect")
			}
			s.Print(c, &variantInfo{
				Name:       v.Name,
				MaxPayload: v.MaxPayload,
				Checksum:   v.Checksum.String(),
				CheckMode:  v.CheckMode.String(),
			}, FormatVariant(v))
		},
	}

	// EncodeCmd prints the frame of a payload without sending it.
	EncodeCmd = ishell.Cmd{
		Name:    "encode",
		Aliases: []string{"e"},
		Help:    "0xHEX... | TEXT...",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			payload, err := ParsePayload(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			v, err := s.Config.FramingVariant()
			if err != nil {
				c.Err(err)
				return
			}
			frame, err := v.Encode(payload)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, frame, FormatHex(frame))
		},
	}
)
