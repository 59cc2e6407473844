package filestore

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"
)

// compress encodes plain using the requested algorithm. AlgorithmNone
// returns plain unchanged.
func compress(plain []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case AlgorithmSnappy:
		return snappy.Encode(nil, plain), nil

	case AlgorithmLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(plain); err != nil {
			w.Close()
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress close: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return plain, nil
	}
}

// decompress reverses compress. Called on snapshot load, so it must accept
// plain (uncompressed) data too for the AlgorithmNone case.
func decompress(data []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case AlgorithmSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("snappy decompress: %w", err)
		}
		return out, nil

	case AlgorithmLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil

	default:
		return data, nil
	}
}
