package postgres

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4"
	"github.com/ugorji/go/codec"
)

var handle codec.BincHandle

// encodeBlob binary-encodes v with ugorji/go/codec then lz4-compresses
// the result, per SPEC_FULL.md §11: opaque processor response structs
// (OAuth credentials, account details, charge/transfer payloads) are
// stored as compressed binary blobs rather than raw JSON columns.
func encodeBlob(v interface{}) ([]byte, error) {
	var raw bytes.Buffer
	enc := codec.NewEncoder(&raw, &handle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	var compressed bytes.Buffer
	w := lz4.NewWriter(&compressed)
	if _, err := w.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

// decodeBlob reverses encodeBlob into v.
func decodeBlob(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	r := lz4.NewReader(bytes.NewReader(data))
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	dec := codec.NewDecoderBytes(raw, &handle)
	return dec.Decode(v)
}
