// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package flat

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"

	"github.com/attune-dev/attune/internal/store"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// Vector artifact layout, little-endian throughout:
//
//	magic   "ATVX"
//	version uint32
//	dims    uint32
//	count   uint32
//	data    count * dims float32
const (
	vecMagic   = "ATVX"
	vecVersion = 1
)

func writeVectors(path string, dims int, vectors [][]float32) error {
	var buf bytes.Buffer
	buf.WriteString(vecMagic)
	for _, v := range []uint32{vecVersion, uint32(dims), uint32(len(vectors))} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "flat: encoding vector header", attuneerr.FieldPath(path))
		}
	}
	for _, vec := range vectors {
		if err := binary.Write(&buf, binary.LittleEndian, vec); err != nil {
			return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "flat: encoding vectors", attuneerr.FieldPath(path))
		}
	}
	return atomicWrite(path, buf.Bytes())
}

func readVectors(path string) (int, [][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "flat: reading vector artifact", attuneerr.FieldPath(path))
	}

	r := bytes.NewReader(data)

	magic := make([]byte, len(vecMagic))
	if _, err := r.Read(magic); err != nil || string(magic) != vecMagic {
		return 0, nil, attuneerr.New(attuneerr.CodeStoreArtifactCorrupt, "flat: vector artifact has bad magic", attuneerr.FieldPath(path))
	}

	var version, dims, count uint32
	for _, dst := range []*uint32{&version, &dims, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return 0, nil, attuneerr.New(attuneerr.CodeStoreArtifactCorrupt, "flat: vector artifact header truncated", attuneerr.FieldPath(path))
		}
	}
	if version != vecVersion {
		return 0, nil, attuneerr.New(attuneerr.CodeStoreArtifactCorrupt, "flat: unsupported vector artifact version",
			attuneerr.FieldPath(path),
			attuneerr.Field("version", version),
		)
	}
	if dims == 0 {
		return 0, nil, attuneerr.New(attuneerr.CodeStoreArtifactCorrupt, "flat: vector artifact declares zero dimensions", attuneerr.FieldPath(path))
	}

	want := int(count) * int(dims) * 4
	if r.Len() != want {
		return 0, nil, attuneerr.New(attuneerr.CodeStoreArtifactCorrupt, "flat: vector artifact payload size mismatch",
			attuneerr.FieldPath(path),
			attuneerr.Field("got", r.Len()),
			attuneerr.Field("want", want),
		)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dims)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return 0, nil, attuneerr.New(attuneerr.CodeStoreArtifactCorrupt, "flat: vector artifact payload truncated", attuneerr.FieldPath(path))
		}
		vectors[i] = vec
	}
	return int(dims), vectors, nil
}

func writeItems(path string, items []store.Item) error {
	if items == nil {
		items = []store.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "flat: encoding item artifact", attuneerr.FieldPath(path))
	}
	return atomicWrite(path, data)
}

func readItems(path string) ([]store.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "flat: reading item artifact", attuneerr.FieldPath(path))
	}

	var items []store.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactCorrupt, "flat: item artifact is not valid JSON", attuneerr.FieldPath(path))
	}
	return items, nil
}

// atomicWrite replaces path via a temp-file rename so readers never see a
// half-written artifact.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "flat: writing store artifact", attuneerr.FieldPath(path))
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "flat: replacing store artifact", attuneerr.FieldPath(path))
	}
	return nil
}
