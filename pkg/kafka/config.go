package kafka

import "time"

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

type ProducerConfig struct {
	Brokers         []string
	RequiredAcks    int
	Compression     string
	MaxAttempts     int
	WriteTimeout    time.Duration
	BatchTimeout    time.Duration
	AutoCreateTopic bool
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) {
		c.Brokers = brokers
	}
}

// WithCompression accepts gzip, snappy, lz4 or zstd.
func WithCompression(compression string) ProducerOption {
	return func(c *ProducerConfig) {
		c.Compression = compression
	}
}

// WithRequiredAcks sets required acknowledgements (-1 = all).
func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) {
		c.RequiredAcks = acks
	}
}

func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) {
		c.MaxAttempts = n
	}
}

// WithBatchTimeout bounds how long an event waits for a batch. Events are
// rare, so keep it short.
func WithBatchTimeout(timeout time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.BatchTimeout = timeout
	}
}

func WithWriteTimeout(timeout time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = timeout
	}
}

func WithAutoCreateTopic(on bool) ProducerOption {
	return func(c *ProducerConfig) {
		c.AutoCreateTopic = on
	}
}
