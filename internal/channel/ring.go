// Package channel provides the bounded queue that carries measurements from
// the signal generator to the aggregator.
//
// The queue is a lock-free single-producer/single-consumer ring of fixed-size
// binary records. Exactly one goroutine may call TryEnqueue and exactly one
// goroutine may call Dequeue or Drain. When the ring is full new records are
// dropped (drop-newest) and counted; the producer never blocks.
package channel

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/torosent/gpiojitter/internal/metrics"
)

// RecordSize is the encoded size of one measurement.
const RecordSize = 16

// DefaultCapacity is the default number of in-flight records.
const DefaultCapacity = 4096

// slot holds one encoded record and the sequence counter that hands the slot
// back and forth between producer and consumer.
type slot struct {
	val [RecordSize]byte
	seq atomic.Uint64
}

// Ring is a bounded SPSC queue of measurements.
type Ring struct {
	_    [64]byte
	head uint64 // consumer only

	_    [56]byte
	tail uint64 // producer only

	_       [56]byte
	dropped atomic.Uint64

	mask uint64
	step uint64
	buf  []slot
}

// New creates a ring holding up to capacity records. Capacity must be a
// power of two.
func New(capacity int) (*Ring, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("channel capacity must be a positive power of two, got %d", capacity)
	}
	r := &Ring{
		mask: uint64(capacity - 1),
		step: uint64(capacity),
		buf:  make([]slot, capacity),
	}
	for i := range r.buf {
		r.buf[i].seq.Store(uint64(i))
	}
	return r, nil
}

// Cap returns the capacity of the ring in records.
func (r *Ring) Cap() int { return len(r.buf) }

// TryEnqueue copies m into the ring. It reports false, and counts the record
// as dropped, when the ring is full.
func (r *Ring) TryEnqueue(m metrics.Measurement) bool {
	t := r.tail
	s := &r.buf[t&r.mask]
	if s.seq.Load() != t {
		r.dropped.Add(1)
		return false
	}
	encode(&s.val, m)
	s.seq.Store(t + 1)
	r.tail = t + 1
	return true
}

// Dequeue removes the oldest record. ok is false when the ring is empty.
func (r *Ring) Dequeue() (m metrics.Measurement, ok bool) {
	h := r.head
	s := &r.buf[h&r.mask]
	if s.seq.Load() != h+1 {
		return metrics.Measurement{}, false
	}
	m = decode(&s.val)
	s.seq.Store(h + r.step)
	r.head = h + 1
	return m, true
}

// Drain dequeues every currently available record and hands it to fn in
// order. Draining stops early when fn returns false; the record passed to
// that call has already been removed from the ring. Drain returns the number
// of records dequeued.
func (r *Ring) Drain(fn func(metrics.Measurement) bool) int {
	n := 0
	for {
		m, ok := r.Dequeue()
		if !ok {
			return n
		}
		n++
		if !fn(m) {
			return n
		}
	}
}

// Dropped returns the number of records rejected because the ring was full.
// It is safe to call from any goroutine.
func (r *Ring) Dropped() uint64 { return r.dropped.Load() }

func encode(dst *[RecordSize]byte, m metrics.Measurement) {
	binary.LittleEndian.PutUint64(dst[0:8], m.Sequence)
	binary.LittleEndian.PutUint64(dst[8:16], m.IntervalNS)
}

func decode(src *[RecordSize]byte) metrics.Measurement {
	return metrics.Measurement{
		Sequence:   binary.LittleEndian.Uint64(src[0:8]),
		IntervalNS: binary.LittleEndian.Uint64(src[8:16]),
	}
}

// RoundCapacity returns the smallest power of two that is >= n.
func RoundCapacity(n int) int {
	if n <= 1 {
		return 1
	}
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}
