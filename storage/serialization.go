// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/cic/core"
)

// Records are encoded field by field with mus primitives: varints for
// integers, length-prefixed strings, and raw float32 pairs for samples.
// Timestamps are stored as Unix microseconds.

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	var w writer
	w.uint64(uint64(doc.Id))
	w.uint64(uint64(doc.Position))
	w.string(doc.Text)
	w.time(doc.InsertedAt)
	return w.finish()
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	r := reader{bs: data}
	doc := &core.Document{
		Id:         core.ID(r.uint64()),
		Position:   int(r.uint64()),
		Text:       r.string(),
		InsertedAt: r.time(),
	}
	if err := r.done("document"); err != nil {
		return nil, err
	}
	return doc, nil
}

// SampleSize is the encoded size of one complex64 sample.
const SampleSize = 8

// MarshalWaveform serializes a waveform at complex64 precision.
func MarshalWaveform(wave core.Waveform) []byte {
	n := uint64(len(wave))
	buf := make([]byte, varint.Uint64.Size(n)+len(wave)*SampleSize)
	off := varint.Uint64.Marshal(n, buf)
	for _, v := range wave {
		off += raw.Float32.Marshal(float32(real(v)), buf[off:])
		off += raw.Float32.Marshal(float32(imag(v)), buf[off:])
	}
	return buf
}

// UnmarshalWaveform deserializes a waveform from bytes.
func UnmarshalWaveform(data []byte) (core.Waveform, error) {
	r := reader{bs: data}
	n := r.uint64()
	// Each sample needs 8 bytes; reject counts the buffer cannot hold
	// before allocating.
	if r.err == nil && n > uint64(len(data))/SampleSize {
		return nil, fmt.Errorf("%w: waveform of %d samples in %d bytes", ErrTruncatedData, n, len(data))
	}
	wave := make(core.Waveform, n)
	for i := range wave {
		re := r.float32()
		im := r.float32()
		wave[i] = complex(float64(re), float64(im))
	}
	if err := r.done("waveform"); err != nil {
		return nil, err
	}
	return wave, nil
}

// MarshalIndexConfig serializes an IndexConfig to bytes.
func MarshalIndexConfig(config *IndexConfig) []byte {
	var w writer
	w.uint64(uint64(config.Length))
	w.string(config.Mode)
	w.string(config.Model)
	return w.finish()
}

// UnmarshalIndexConfig deserializes an IndexConfig from bytes.
func UnmarshalIndexConfig(data []byte) (*IndexConfig, error) {
	r := reader{bs: data}
	config := &IndexConfig{
		Length: int(r.uint64()),
		Mode:   r.string(),
		Model:  r.string(),
	}
	if err := r.done("index config"); err != nil {
		return nil, err
	}
	return config, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	var w writer
	w.string(checkpoint.ProcessorType)
	w.uint64(uint64(checkpoint.Position))
	w.time(checkpoint.UpdatedAt)
	return w.finish()
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	r := reader{bs: data}
	checkpoint := &core.Checkpoint{
		ProcessorType: r.string(),
		Position:      int(r.uint64()),
		UpdatedAt:     r.time(),
	}
	if err := r.done("checkpoint"); err != nil {
		return nil, err
	}
	return checkpoint, nil
}

// writer accumulates marshal steps and sizes the buffer once.
type writer struct {
	steps []func(bs []byte) int
	size  int
}

func (w *writer) uint64(v uint64) {
	w.size += varint.Uint64.Size(v)
	w.steps = append(w.steps, func(bs []byte) int { return varint.Uint64.Marshal(v, bs) })
}

func (w *writer) int64(v int64) {
	w.size += varint.Int64.Size(v)
	w.steps = append(w.steps, func(bs []byte) int { return varint.Int64.Marshal(v, bs) })
}

func (w *writer) string(v string) {
	w.size += ord.String.Size(v)
	w.steps = append(w.steps, func(bs []byte) int { return ord.String.Marshal(v, bs) })
}

func (w *writer) time(t time.Time) {
	if t.IsZero() {
		w.int64(0)
		return
	}
	w.int64(t.UnixMicro())
}

func (w *writer) finish() []byte {
	buf := make([]byte, w.size)
	off := 0
	for _, step := range w.steps {
		off += step(buf[off:])
	}
	return buf
}

// reader decodes fields in sequence and keeps the first error.
type reader struct {
	bs  []byte
	off int
	err error
}

func (r *reader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs[r.off:])
	r.off += n
	r.err = err
	return v
}

func (r *reader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.off:])
	r.off += n
	r.err = err
	return v
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.off:])
	r.off += n
	r.err = err
	return v
}

func (r *reader) float32() float32 {
	if r.err != nil {
		return 0
	}
	v, n, err := raw.Float32.Unmarshal(r.bs[r.off:])
	r.off += n
	r.err = err
	return v
}

func (r *reader) time() time.Time {
	micros := r.int64()
	if r.err != nil || micros == 0 {
		return time.Time{}
	}
	return time.UnixMicro(micros).UTC()
}

func (r *reader) done(what string) error {
	if r.err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, what, r.err)
	}
	if r.off != len(r.bs) {
		return fmt.Errorf("%w: %s: %d trailing bytes", ErrSerializationFailed, what, len(r.bs)-r.off)
	}
	return nil
}
