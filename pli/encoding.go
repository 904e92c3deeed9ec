package pli

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrCorrupt is returned when decoding malformed PLI bytes.
var ErrCorrupt = errors.New("pli: corrupt encoding")

const encodingVersion = 1

// MarshalBinary encodes the PLI as
// [version][relationSize][numClusters]{[len][delta rows...]}[nullsLen][nulls].
// All integers are uvarints; row ids are delta-coded within a cluster.
func (p *PLI) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 16+2*p.size+len(p.clusters))
	buf = binary.AppendUvarint(buf, encodingVersion)
	buf = binary.AppendUvarint(buf, uint64(p.relationSize))
	buf = binary.AppendUvarint(buf, uint64(len(p.clusters)))
	for _, c := range p.clusters {
		buf = binary.AppendUvarint(buf, uint64(len(c)))
		prev := 0
		for _, row := range c {
			buf = binary.AppendUvarint(buf, uint64(row-prev))
			prev = row
		}
	}
	nulls, err := p.nullCluster.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("pli: encode null cluster: %w", err)
	}
	buf = binary.AppendUvarint(buf, uint64(len(nulls)))
	return append(buf, nulls...), nil
}

// Unmarshal decodes bytes produced by MarshalBinary into a new PLI.
func Unmarshal(data []byte) (*PLI, error) {
	r := reader{data: data}
	if v := r.uvarint(); v != encodingVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorrupt, v)
	}
	relationSize := int(r.uvarint())
	numClusters := int(r.uvarint())
	if r.err != nil || numClusters > relationSize {
		return nil, ErrCorrupt
	}
	clusters := make([][]int, numClusters)
	for i := range clusters {
		n := int(r.uvarint())
		if r.err != nil || n > relationSize {
			return nil, ErrCorrupt
		}
		c := make([]int, n)
		prev := 0
		for j := range c {
			prev += int(r.uvarint())
			if prev >= relationSize {
				return nil, ErrCorrupt
			}
			c[j] = prev
		}
		clusters[i] = c
	}
	nullsLen := int(r.uvarint())
	if r.err != nil || nullsLen > len(r.data) {
		return nil, ErrCorrupt
	}
	nulls := roaring.New()
	if nullsLen > 0 {
		if err := nulls.UnmarshalBinary(r.data[:nullsLen]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	return New(clusters, relationSize, nulls), nil
}

type reader struct {
	data []byte
	err  error
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data)
	if n <= 0 {
		r.err = ErrCorrupt
		return 0
	}
	r.data = r.data[n:]
	return v
}
