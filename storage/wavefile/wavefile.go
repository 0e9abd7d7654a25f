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


package wavefile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/storage"
)

// Magic identifies an array file.
const Magic = "CICWAVE1"

// DefaultMaxBodySize bounds the decoded body of an array file read
// without WithMaxBodySize.
const DefaultMaxBodySize uint64 = 4 << 30

const (
	flagZstd byte = 1 << 0

	headerSize   = len(Magic) + 1
	checksumSize = 4
)

// Source is anything that can enumerate equal-length waveforms in order.
// *storage.MemoryStore satisfies it.
type Source interface {
	N() int
	Len() int
	Scan(fn func(position int, wave core.Waveform) bool)
}

// Array is the decoded content of an array file.
type Array struct {
	Length int
	Waves  []core.Waveform
}

// N returns the waveform length.
func (a *Array) N() int { return a.Length }

// Len returns the number of waveforms.
func (a *Array) Len() int { return len(a.Waves) }

// Scan calls fn for each waveform in order until fn returns false.
func (a *Array) Scan(fn func(position int, wave core.Waveform) bool) {
	for i, w := range a.Waves {
		if !fn(i, w) {
			return
		}
	}
}

type options struct {
	compress bool
	level    zstd.EncoderLevel
}

// Option configures Write.
type Option func(*options)

// WithCompression enables zstd compression of the body at the default level.
func WithCompression() Option {
	return func(o *options) {
		o.compress = true
	}
}

// WithCompressionLevel enables zstd compression at a zstd numeric level (1-22).
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.compress = true
		o.level = zstd.EncoderLevelFromZstd(level)
	}
}

type readOptions struct {
	maxBodySize uint64
}

// ReadOption configures Read, Decode and LoadFromFile.
type ReadOption func(*readOptions)

// WithMaxBodySize limits the body size, after decompression, that a reader
// accepts. Larger bodies fail with ErrBodyTooLarge.
func WithMaxBodySize(n uint64) ReadOption {
	return func(o *readOptions) {
		if n > 0 {
			o.maxBodySize = n
		}
	}
}

func newReadOptions(opts []ReadOption) readOptions {
	o := readOptions{maxBodySize: DefaultMaxBodySize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// checksumWriter computes a running CRC32 of everything written through it.
type checksumWriter struct {
	w    io.Writer
	hash hash.Hash32
}

func (cw *checksumWriter) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

// Write encodes every waveform of src to w.
func Write(w io.Writer, src Source, opts ...Option) error {
	o := options{level: zstd.SpeedDefault}
	for _, opt := range opts {
		opt(&o)
	}

	n := src.N()
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	count := src.Len()

	var flags byte
	if o.compress {
		flags |= flagZstd
	}
	header := append([]byte(Magic), flags)
	if _, err := w.Write(header); err != nil {
		return err
	}

	cw := &checksumWriter{w: w, hash: crc32.NewIEEE()}
	var body io.Writer = cw
	var enc *zstd.Encoder
	if o.compress {
		var err error
		enc, err = zstd.NewWriter(cw, zstd.WithEncoderLevel(o.level))
		if err != nil {
			return err
		}
		body = enc
	}

	if err := writeBody(body, n, count, src); err != nil {
		if enc != nil {
			enc.Close()
		}
		return err
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return err
		}
	}

	trailer := make([]byte, checksumSize)
	binary.LittleEndian.PutUint32(trailer, cw.hash.Sum32())
	_, err := w.Write(trailer)
	return err
}

func writeBody(w io.Writer, n, count int, src Source) error {
	head := make([]byte, varint.Uint64.Size(uint64(n))+varint.Uint64.Size(uint64(count)))
	off := varint.Uint64.Marshal(uint64(n), head)
	varint.Uint64.Marshal(uint64(count), head[off:])
	if _, err := w.Write(head); err != nil {
		return err
	}

	buf := make([]byte, n*storage.SampleSize)
	written := 0
	var err error
	src.Scan(func(pos int, wave core.Waveform) bool {
		if pos >= count {
			return false
		}
		if len(wave) != n {
			err = fmt.Errorf("waveform %d: %w", pos, &core.LengthMismatchError{Expected: n, Actual: len(wave)})
			return false
		}
		off := 0
		for _, v := range wave {
			off += raw.Float32.Marshal(float32(real(v)), buf[off:])
			off += raw.Float32.Marshal(float32(imag(v)), buf[off:])
		}
		if _, err = w.Write(buf); err != nil {
			return false
		}
		written++
		return true
	})
	if err != nil {
		return err
	}
	if written != count {
		return fmt.Errorf("wavefile: source yielded %d of %d waveforms", written, count)
	}
	return nil
}

// Read decodes an array file from r.
func Read(r io.Reader, opts ...ReadOption) (*Array, error) {
	o := newReadOptions(opts)
	limit := int64(min(o.maxBodySize, math.MaxInt64-uint64(headerSize+checksumSize)-1))
	data, err := io.ReadAll(io.LimitReader(r, limit+int64(headerSize+checksumSize)+1))
	if err != nil {
		return nil, err
	}
	return decode(data, o)
}

// Decode decodes an array file held in memory.
func Decode(data []byte, opts ...ReadOption) (*Array, error) {
	return decode(data, newReadOptions(opts))
}

func decode(data []byte, o readOptions) (*Array, error) {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return nil, ErrBadMagic
	}
	if len(data) < headerSize+checksumSize {
		return nil, fmt.Errorf("%w: %d byte file", storage.ErrTruncatedData, len(data))
	}
	if size := uint64(len(data) - headerSize - checksumSize); size > o.maxBodySize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrBodyTooLarge, size, o.maxBodySize)
	}

	flags := data[len(Magic)]
	if flags&^flagZstd != 0 {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedFlags, flags)
	}

	body := data[headerSize : len(data)-checksumSize]
	expected := binary.LittleEndian.Uint32(data[len(data)-checksumSize:])
	if actual := crc32.ChecksumIEEE(body); actual != expected {
		return nil, &ChecksumMismatchError{Expected: expected, Actual: actual}
	}

	if flags&flagZstd != 0 {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderMaxMemory(o.maxBodySize),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		body, err = dec.DecodeAll(body, nil)
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
			return nil, fmt.Errorf("%w: decompressed body exceeds %d bytes", ErrBodyTooLarge, o.maxBodySize)
		}
		if err != nil {
			return nil, fmt.Errorf("wavefile: decompressing body: %w", err)
		}
	}

	return decodeBody(body)
}

func decodeBody(body []byte) (*Array, error) {
	n, off, err := varint.Uint64.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading length: %w", storage.ErrTruncatedData, err)
	}
	count, m, err := varint.Uint64.Unmarshal(body[off:])
	if err != nil {
		return nil, fmt.Errorf("%w: reading count: %w", storage.ErrTruncatedData, err)
	}
	off += m

	if n < 1 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	samples := body[off:]
	recordSize := n * storage.SampleSize
	if count > uint64(len(samples))/recordSize || uint64(len(samples)) != count*recordSize {
		return nil, fmt.Errorf("%w: %d waveforms of length %d in %d bytes",
			storage.ErrTruncatedData, count, n, len(samples))
	}

	arr := &Array{Length: int(n), Waves: make([]core.Waveform, count)}
	pos := 0
	for i := range arr.Waves {
		wave := make(core.Waveform, n)
		for j := range wave {
			re, k, err := raw.Float32.Unmarshal(samples[pos:])
			if err != nil {
				return nil, err
			}
			pos += k
			im, k, err := raw.Float32.Unmarshal(samples[pos:])
			if err != nil {
				return nil, err
			}
			pos += k
			wave[j] = complex(float64(re), float64(im))
		}
		arr.Waves[i] = wave
	}
	return arr, nil
}

// SaveToFile writes src to path atomically: the file is written to a
// temporary sibling, synced, then renamed over path.
func SaveToFile(path string, src Source, opts ...Option) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()
	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := Write(buf, src, opts...); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	tmpName = ""

	// Best effort: make the rename durable.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// LoadFromFile reads and decodes the array file at path.
func LoadFromFile(path string, opts ...ReadOption) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	arr, err := Read(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return arr, nil
}
