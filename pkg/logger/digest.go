package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// DigestSink receives batches of aggregated error entries.
type DigestSink interface {
	PublishDigest(ctx context.Context, entries []DigestEntry) error
}

type DigestConfig struct {
	Interval       time.Duration // flush interval
	CountThreshold int           // distinct entries that force an early flush
	Sink           DigestSink
}

type DigestEntry struct {
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Digest folds identical error entries together and periodically hands the
// batch to a sink, so an unattended process reports repeated failures once.
type Digest struct {
	cfg     DigestConfig
	mu      sync.Mutex
	entries map[string]*DigestEntry
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewDigest(cfg *DigestConfig) *Digest {
	d := &Digest{
		cfg:     *cfg,
		entries: make(map[string]*DigestEntry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if d.cfg.Interval <= 0 {
		d.cfg.Interval = 5 * time.Minute
	}
	if d.cfg.CountThreshold <= 0 {
		d.cfg.CountThreshold = 50
	}
	go d.loop()
	return d
}

func (d *Digest) Add(message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := digestKey(message, fields, caller)

	d.mu.Lock()
	if e, ok := d.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		d.entries[key] = &DigestEntry{
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	var batch []DigestEntry
	if len(d.entries) >= d.cfg.CountThreshold {
		batch = d.drainLocked()
	}
	d.mu.Unlock()

	if batch != nil {
		go d.publish(batch)
	}
}

func digestKey(message string, fields map[string]interface{}, caller string) string {
	b, _ := json.Marshal(struct {
		M string                 `json:"m"`
		F map[string]interface{} `json:"f"`
		C string                 `json:"c"`
	}{message, fields, caller})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (d *Digest) drainLocked() []DigestEntry {
	if len(d.entries) == 0 {
		return nil
	}
	out := make([]DigestEntry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	d.entries = make(map[string]*DigestEntry)
	return out
}

// Flush publishes pending entries synchronously.
func (d *Digest) Flush() {
	d.mu.Lock()
	batch := d.drainLocked()
	d.mu.Unlock()
	if batch != nil {
		d.publish(batch)
	}
}

func (d *Digest) publish(batch []DigestEntry) {
	if d.cfg.Sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.cfg.Sink.PublishDigest(ctx, batch); err != nil {
		// the logger itself is the caller here; write straight to stderr
		fmt.Fprintf(os.Stderr, "error digest publish failed: %v\n", err)
	}
}

func (d *Digest) loop() {
	defer close(d.done)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.Flush()
		case <-d.stop:
			d.Flush()
			return
		}
	}
}

// Close stops the flush loop after a final flush.
func (d *Digest) Close() {
	d.once.Do(func() { close(d.stop) })
	<-d.done
}
