// Package capture records delivered payloads in a length-delimited log.
//
// Each record is the varint encoded tick followed by the payload encoded
// as protobuf bytes (varint length and raw data).
package capture

import (
	"errors"
	"io"
	"io/ioutil"
	"sync"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/framelink/pkg/framing"
)

// ErrCorrupt indicates a truncated or malformed capture.
var ErrCorrupt = errors.New("corrupt capture")

// Record is a captured payload.
type Record struct {
	Tick    framing.Tick
	Payload []byte
}

// Writer appends records to an io.Writer.
type Writer struct {
	w     io.Writer
	buf   *proto.Buffer
	lock  sync.Mutex
	count int
	err   error
}

// NewWriter creates a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: proto.NewBuffer(nil)}
}

// Write appends a record.
func (w *Writer) Write(tick framing.Tick, payload []byte) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.err != nil {
		return w.err
	}
	w.buf.Reset()
	if err := w.buf.EncodeVarint(uint64(tick)); err != nil {
		return err
	}
	if err := w.buf.EncodeRawBytes(payload); err != nil {
		return err
	}
	if _, err := w.w.Write(w.buf.Bytes()); err != nil {
		w.err = err
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.count
}

// HandlePayload implements arq.PayloadHandler.
func (w *Writer) HandlePayload(payload []byte, now framing.Tick) {
	if err := w.Write(now, payload); err != nil {
		glog.Errorf("capture: %v", err)
	}
}

// Decode parses all records in data.
func Decode(data []byte) ([]Record, error) {
	var records []Record
	for len(data) > 0 {
		tick, n := proto.DecodeVarint(data)
		if n == 0 {
			return records, ErrCorrupt
		}
		data = data[n:]
		size, n := proto.DecodeVarint(data)
		if n == 0 || uint64(len(data)-n) < size {
			return records, ErrCorrupt
		}
		data = data[n:]
		records = append(records, Record{
			Tick:    framing.Tick(tick),
			Payload: append([]byte{}, data[:size]...),
		})
		data = data[size:]
	}
	return records, nil
}

// ReadAll reads all records from r.
func ReadAll(r io.Reader) ([]Record, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
