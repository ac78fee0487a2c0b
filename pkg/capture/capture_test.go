package capture

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/framelink/pkg/arq"
	"github.com/robotalks/framelink/pkg/framing"
)

func TestWriteRead(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	require.NoError(t, w.Write(1, []byte("HELLO")))
	require.NoError(t, w.Write(300, nil))
	var h arq.PayloadHandler = w
	h.HandlePayload(bytes.Repeat([]byte{0xff}, 200), 1<<40)
	require.Equal(t, 3, w.Count())

	// tick 1, length 5
	require.Equal(t, []byte{0x01, 0x05, 'H', 'E', 'L', 'L', 'O'}, out.Bytes()[:7])

	records, err := ReadAll(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, framing.Tick(1), records[0].Tick)
	require.Equal(t, []byte("HELLO"), records[0].Payload)
	require.Equal(t, framing.Tick(300), records[1].Tick)
	require.Empty(t, records[1].Payload)
	require.Equal(t, framing.Tick(1<<40), records[2].Tick)
	require.Len(t, records[2].Payload, 200)
}

func TestDecodeCorrupt(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	require.NoError(t, w.Write(7, []byte("AB")))
	require.NoError(t, w.Write(8, []byte("CD")))
	data := out.Bytes()

	records, err := Decode(data[:len(data)-1])
	require.Equal(t, ErrCorrupt, err)
	require.Len(t, records, 1)
	require.Equal(t, []byte("AB"), records[0].Payload)

	_, err = Decode([]byte{0x80})
	require.Equal(t, ErrCorrupt, err)

	records, err = Decode(nil)
	require.NoError(t, err)
	require.Empty(t, records)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteError(t *testing.T) {
	w := NewWriter(failingWriter{})
	err := w.Write(1, []byte("A"))
	require.Error(t, err)
	require.Equal(t, err, w.Write(2, []byte("B")))
	require.Zero(t, w.Count())
}
