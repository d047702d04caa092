// Package metrics emits tick measurements to a local agent over a unix datagram socket.
// Items are buffered by the Emit methods and written by Flush, which the profiler calls once per
// tick, so no goroutine is involved.
package metrics

import (
	"os"
	"sort"
	"sync"

	"github.com/volcengine/apminsight-tick-profiler-go/profiler/logger"
)

const (
	defaultAddress = "/var/run/tickprof/metrics.sock"
	addressEnvKey  = "TICKPROF_METRICS_SOCK"

	maxPacketSize = 8192
)

type Config struct {
	prefix  string
	address string
	logger  logger.Logger
}

type ClientOption func(config *Config)

func WithPrefix(prefix string) ClientOption {
	return func(config *Config) {
		config.prefix = prefix
	}
}

func WithAddress(address string) ClientOption {
	return func(config *Config) {
		config.address = address
	}
}

func WithLogger(l logger.Logger) ClientOption {
	return func(config *Config) {
		config.logger = l
	}
}

type MetricsClient struct {
	config Config
	sender packetSender

	mu    sync.Mutex
	items []metricItem
}

func NewMetricClient(options ...ClientOption) *MetricsClient {
	config := Config{
		address: defaultAddress,
		logger:  &logger.NoopLogger{},
	}
	if envAddress := os.Getenv(addressEnvKey); len(envAddress) != 0 {
		config.address = envAddress
	}
	for _, opt := range options {
		opt(&config)
	}
	return &MetricsClient{
		config: config,
		sender: newSender(config.address),
	}
}

func (mc *MetricsClient) EmitCounter(name string, value float64, tags map[string]string) error {
	return mc.emit(mtCounter, name, value, tags)
}

func (mc *MetricsClient) EmitTimer(name string, value float64, tags map[string]string) error {
	return mc.emit(mtTimer, name, value, tags)
}

func (mc *MetricsClient) EmitGauge(name string, value float64, tags map[string]string) error {
	return mc.emit(mtGauge, name, value, tags)
}

func (mc *MetricsClient) emit(mt uint8, name string, value float64, tags map[string]string) error {
	item := metricItem{mt: mt, name: name, value: value}
	if len(tags) != 0 {
		item.tags = make([]tag, 0, len(tags))
		for k, v := range tags {
			item.tags = append(item.tags, tag{key: k, value: v})
		}
		sort.Slice(item.tags, func(i, j int) bool { return item.tags[i].key < item.tags[j].key })
	}
	mc.mu.Lock()
	mc.items = append(mc.items, item)
	mc.mu.Unlock()
	return nil
}

// Flush encodes the buffered items into packets of at most maxPacketSize bytes and sends them.
// Items that cannot be encoded are dropped and counted in the returned error.
func (mc *MetricsClient) Flush() error {
	mc.mu.Lock()
	items := mc.items
	mc.items = nil
	mc.mu.Unlock()
	if len(items) == 0 {
		return nil
	}

	packets, formatErrors := encodePackets(mc.config.prefix, items)
	if formatErrors > 0 {
		mc.config.logger.Error("[metrics] %d items dropped by format errors", formatErrors)
	}
	for _, packet := range packets {
		if err := mc.sender.SendPacket(packet); err != nil {
			mc.config.logger.Error("[metrics] send %d bytes to %s err %v", len(packet), mc.config.address, err)
			return err
		}
	}
	return nil
}

func (mc *MetricsClient) Close() error {
	err := mc.Flush()
	mc.sender.Close()
	return err
}
