package nnue

import (
	"encoding/binary"
	"fmt"
	"io"
)

// fileLength is the exact int16 element count of a weights file: no
// header, no magic number, big-endian throughout.
const fileLength = InputBuckets*NumFeatures*HL + HL + OutputBuckets*2*HL + OutputBuckets

// LoadWeights reads a quantized network from r: L1 weights (feature-major,
// then input bucket, then hidden index), L1 bias, L2 weights (stm then opp
// per output bucket), then L2 bias -- a bare stream of big-endian int16
// values with no header or length prefix. Exactly fileLength int16s are
// read: a shorter stream is a read error, and any data past that point is
// left unread and not reported.
func LoadWeights(n *Network, r io.Reader) error {
	raw := make([]int16, fileLength)
	if err := binary.Read(r, binary.BigEndian, raw); err != nil {
		return fmt.Errorf("nnue: read weights: %w", err)
	}

	pos := 0
	for f := 0; f < NumFeatures; f++ {
		for b := 0; b < InputBuckets; b++ {
			copy(n.L1Weights[f][b][:], raw[pos:pos+HL])
			pos += HL
		}
	}
	copy(n.L1Bias[:], raw[pos:pos+HL])
	pos += HL

	for b := 0; b < OutputBuckets; b++ {
		copy(n.L2Weights[b][0][:], raw[pos:pos+HL])
		pos += HL
		copy(n.L2Weights[b][1][:], raw[pos:pos+HL])
		pos += HL
	}
	copy(n.L2Bias[:], raw[pos:pos+OutputBuckets])
	pos += OutputBuckets

	if pos != fileLength {
		return fmt.Errorf("nnue: weights stream length mismatch: consumed %d, want %d", pos, fileLength)
	}

	n.loaded = true
	return nil
}
