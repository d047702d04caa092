package metrics

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

const maxStringLen = 255

const (
	mtCounter = uint8(1)
	mtTimer   = uint8(2)
	mtGauge   = uint8(3)
)

var errStringTooLong = errors.New("string length must be less than 256")

type tag struct {
	key   string
	value string
}

type metricItem struct {
	mt    uint8
	name  string
	value float64
	tags  []tag
}

// formatItem writes: type byte, name (with optional "prefix."), little-endian float64 value,
// tag count, then key/value pairs. Strings are prefixed by a one byte length.
func formatItem(buf *bytes.Buffer, prefix string, item metricItem) error {
	name := item.name
	if prefix != "" {
		name = prefix + "." + name
	}
	if len(item.tags) > maxStringLen {
		return errors.New("too many tags")
	}
	buf.WriteByte(item.mt)
	if err := writeString(buf, name); err != nil {
		return err
	}
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], math.Float64bits(item.value))
	buf.Write(v[:])
	buf.WriteByte(uint8(len(item.tags)))
	for _, t := range item.tags {
		if err := writeString(buf, t.key); err != nil {
			return err
		}
		if err := writeString(buf, t.value); err != nil {
			return err
		}
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > maxStringLen {
		return errStringTooLong
	}
	buf.WriteByte(uint8(len(s)))
	buf.WriteString(s)
	return nil
}

func encodePackets(prefix string, items []metricItem) ([][]byte, int) {
	var (
		packets      [][]byte
		packet       []byte
		formatErrors int
	)
	itemBuf := bytes.NewBuffer(nil)
	for _, item := range items {
		itemBuf.Reset()
		if err := formatItem(itemBuf, prefix, item); err != nil {
			formatErrors++
			continue
		}
		data := itemBuf.Bytes()
		if len(packet)+len(data) > maxPacketSize && len(packet) > 0 {
			packets = append(packets, packet)
			packet = nil
		}
		packet = append(packet, data...)
	}
	if len(packet) > 0 {
		packets = append(packets, packet)
	}
	return packets, formatErrors
}
