package buffer

import (
	"fmt"

	"github.com/vmihailenco/msgpack"

	"github.com/relstore/core/storage"
)

// Encode msgpack-marshals v into a fixed storage.PageSize buffer,
// generalizing petro's util.ToByteSlice helper (util/convert.go) so any
// page-shaped struct - not just one hardcoded type - can be written
// straight into a page's backing bytes.
func Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("buffer: encode: %w", err)
	}
	if len(data) > storage.PageSize {
		return nil, fmt.Errorf("buffer: encoded value exceeds page size (%d > %d)", len(data), storage.PageSize)
	}

	out := make([]byte, storage.PageSize)
	copy(out, data)
	return out, nil
}

// Decode msgpack-unmarshals a page buffer into a T, generalizing
// petro's util.ToStruct helper.
func Decode[T any](data []byte) (T, error) {
	var out T
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("buffer: decode: %w", err)
	}
	return out, nil
}
