package metrics

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	packets [][]byte
	closed  bool
}

func (r *recordingSender) SendPacket(packet []byte) error {
	r.packets = append(r.packets, append([]byte(nil), packet...))
	return nil
}

func (r *recordingSender) Close() { r.closed = true }

func TestFormatItem(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	err := formatItem(buf, "bot", metricItem{
		mt:    mtTimer,
		name:  "tick.cpu",
		value: 12.5,
		tags:  []tag{{key: "shard", value: "shard0"}},
	})
	require.NoError(t, err)

	b := buf.Bytes()
	assert.Equal(t, mtTimer, b[0])
	assert.Equal(t, uint8(len("bot.tick.cpu")), b[1])
	assert.Equal(t, "bot.tick.cpu", string(b[2:14]))
	assert.Equal(t, 12.5, math.Float64frombits(binary.LittleEndian.Uint64(b[14:22])))
	assert.Equal(t, uint8(1), b[22])
	assert.Equal(t, uint8(5), b[23])
	assert.Equal(t, "shard", string(b[24:29]))
}

func TestFormatItemNameTooLong(t *testing.T) {
	err := formatItem(bytes.NewBuffer(nil), "", metricItem{mt: mtGauge, name: strings.Repeat("x", 256)})
	assert.Equal(t, errStringTooLong, err)
}

func TestFlushBatchesPackets(t *testing.T) {
	rs := &recordingSender{}
	mc := NewMetricClient(WithPrefix("bot"), WithAddress("/nonexistent.sock"))
	mc.sender = rs

	require.NoError(t, mc.EmitTimer("tick.cpu", 3, map[string]string{"b": "2", "a": "1"}))
	require.NoError(t, mc.EmitGauge("session.frames", 7, nil))
	require.NoError(t, mc.EmitCounter(strings.Repeat("y", 300), 1, nil))
	require.NoError(t, mc.Flush())

	require.Len(t, rs.packets, 1)
	assert.Contains(t, string(rs.packets[0]), "bot.tick.cpu")
	assert.Contains(t, string(rs.packets[0]), "bot.session.frames")
	assert.Contains(t, string(rs.packets[0]), "\x02\x01a\x011\x01b\x012")

	// buffer is empty after a flush
	require.NoError(t, mc.Flush())
	assert.Len(t, rs.packets, 1)

	require.NoError(t, mc.Close())
	assert.True(t, rs.closed)
}

func TestEncodePacketsSplits(t *testing.T) {
	items := make([]metricItem, 0, 200)
	for i := 0; i < 200; i++ {
		items = append(items, metricItem{mt: mtCounter, name: strings.Repeat("n", 100), value: 1})
	}
	packets, formatErrors := encodePackets("", items)
	assert.Zero(t, formatErrors)
	require.True(t, len(packets) > 1)
	for _, p := range packets {
		assert.True(t, len(p) <= maxPacketSize)
	}
}
