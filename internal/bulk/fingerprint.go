package bulk

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/rat-data/colstore/internal/value"
)

// fingerprint identifies a (table_name, primary_key) pair so a batch
// fill pass can detect a second operation against the same row within
// one RPC (spec §4.6: "hash of table-name XOR hash of pkey-values").
func fingerprint(table string, pk value.PrimaryKey) uint64 {
	th := fnv.New64a()
	_, _ = th.Write([]byte(table))

	kh := fnv.New64a()
	for _, col := range pk.Columns {
		_, _ = kh.Write([]byte(col.Name))
		_, _ = kh.Write(valueBytes(col.Value))
	}
	return th.Sum64() ^ kh.Sum64()
}

// valueBytes produces a stable byte representation of a Value for
// hashing purposes only; it is not a wire format.
func valueBytes(v value.Value) []byte {
	var buf [9]byte
	buf[0] = byte(v.Kind())
	switch v.Kind() {
	case value.KindInteger:
		i, _ := v.AsInteger()
		binary.BigEndian.PutUint64(buf[1:], uint64(i))
		return buf[:]
	case value.KindDouble:
		f, _ := v.AsDouble()
		binary.BigEndian.PutUint64(buf[1:], uint64(int64(f*1e9)))
		return buf[:]
	case value.KindBoolean:
		b, _ := v.AsBoolean()
		if b {
			buf[1] = 1
		}
		return buf[:2]
	case value.KindString, value.KindBinary:
		b, _ := v.AsBytes()
		return append(buf[:1], b...)
	default:
		return buf[:1]
	}
}
