package vectorindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketMeta = []byte("meta")
	bucketRows = []byte("rows")
	keyDim     = []byte("dim")
	keyCount   = []byte("count")
)

// WriteBolt persists the index into a bbolt file, replacing any rows stored
// there before. Rows are keyed by big-endian position so a cursor walk
// yields them in build order.
func WriteBolt(path string, f *Flat) error {
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketRows} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
		}
		meta, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketMeta, err)
		}
		rows, err := tx.CreateBucket(bucketRows)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketRows, err)
		}

		if err := meta.Put(keyDim, binary.LittleEndian.AppendUint32(nil, uint32(f.dim))); err != nil {
			return err
		}
		if err := meta.Put(keyCount, binary.LittleEndian.AppendUint32(nil, uint32(len(f.vecs)))); err != nil {
			return err
		}

		for pos, vec := range f.vecs {
			if err := rows.Put(rowKey(pos), encodeRow(f.ids[pos], vec)); err != nil {
				return err
			}
		}
		return nil
	})
}

// loadBolt reads every row into memory and closes the file.
func loadBolt(path string, f *Flat) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}
	defer db.Close()

	var (
		dim, count int
		ids        []string
		vecs       [][]float32
	)
	err = db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		rows := tx.Bucket(bucketRows)
		if meta == nil || rows == nil {
			return errors.New("missing meta or rows bucket")
		}
		dimData, countData := meta.Get(keyDim), meta.Get(keyCount)
		if len(dimData) != 4 || len(countData) != 4 {
			return errors.New("corrupt meta bucket")
		}
		dim = int(binary.LittleEndian.Uint32(dimData))
		count = int(binary.LittleEndian.Uint32(countData))

		c := rows.Cursor()
		pos := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) != 8 || binary.BigEndian.Uint64(k) != uint64(pos) {
				return fmt.Errorf("row %d is missing or out of order", pos)
			}
			id, vec, err := decodeRow(v, dim)
			if err != nil {
				return fmt.Errorf("row %d: %w", pos, err)
			}
			ids = append(ids, id)
			vecs = append(vecs, vec)
			pos++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(vecs) != count {
		return fmt.Errorf("meta declares %d rows, found %d", count, len(vecs))
	}

	f.dim = dim
	return f.Build(ids, vecs)
}

func rowKey(pos int) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(pos))
}

func encodeRow(id string, vec []float32) []byte {
	out := make([]byte, 0, 4+len(id)+4*len(vec))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(id)))
	out = append(out, id...)
	for _, v := range vec {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func decodeRow(data []byte, dim int) (string, []float32, error) {
	if len(data) < 4 {
		return "", nil, errors.New("truncated row")
	}
	idlen := int(binary.LittleEndian.Uint32(data))
	if 4+idlen+4*dim != len(data) {
		return "", nil, fmt.Errorf("row size %d does not match dimension %d", len(data), dim)
	}
	id := string(data[4 : 4+idlen])
	vec := make([]float32, dim)
	off := 4 + idlen
	for j := range vec {
		vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		off += 4
	}
	return id, vec, nil
}
