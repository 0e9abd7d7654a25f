// Package wavefile reads and writes the array file: an ordered sequence of
// equal-length complex waveforms.
//
// # Format
//
//	magic    8 bytes  "CICWAVE1"
//	flags    1 byte   bit 0: body is zstd-compressed
//	body     varint N, varint count, count×N×(float32 real, float32 imag)
//	checksum 4 bytes  CRC32 (IEEE, little-endian) of the body as stored
//
// Integers in the body are mus-go varints and samples are mus-go raw
// float32 values, the same primitives the journal uses.
package wavefile
