// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package meta encodes the table header stored in page 0.
//
// The header is the magic code followed by TLV fields, a zero terminator and
// a blake3 checksum of everything before it. The remainder of the page is
// zero. Zero-valued fields are omitted, so new fields can be appended without
// breaking older files.
package meta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/dacapoday/sqlet"
)

var (
	ErrCorrupt                = sqlet.ErrCorrupt
	ErrUnknownMagicCode       = sqlet.ErrUnknownMagicCode
	ErrUnsupportedFileVersion = sqlet.ErrUnsupportedFileVersion
)

// MagicCode starts every table file.
var MagicCode = [4]byte{'S', 'Q', 'L', 'T'}

// Version is the current file format version.
const Version = 1

const checksumSize = 32

// Meta is the decoded header page.
type Meta struct {
	FileID [16]byte // File identity (key: 8)

	UpdateTime int64 // Last close timestamp, unix nanoseconds (key: 7)
	CreateTime int64 // Creation timestamp, unix nanoseconds (key: 6)

	RowCount  uint64       // Rows stored in the tree (key: 5)
	Root      sqlet.PageNo // Root page of the tree (key: 4)
	PageCount uint32       // Pages in the file including the header (key: 3)
	PageSize  uint32       // Page size in bytes (key: 2)

	Version byte // Format version (key: 1)
}

// Encode writes meta into page, which is fully overwritten.
func Encode(page []byte, meta *Meta) (err error) {
	if Size(meta) > len(page) {
		return fmt.Errorf("header of %d bytes exceeds page of %d: %w", Size(meta), len(page), ErrCorrupt)
	}

	var buf bytes.Buffer
	h := blake3.New()
	w := io.MultiWriter(&buf, h)
	e := tlvEncoder{w}
	if _, err = e.Write(MagicCode[:]); err != nil {
		return
	}
	if err = e.writeVal(1, uint64(meta.Version)); err != nil {
		return
	}
	if err = e.writeVal(2, uint64(meta.PageSize)); err != nil {
		return
	}
	if err = e.writeVal(3, uint64(meta.PageCount)); err != nil {
		return
	}
	if err = e.writeVal(4, uint64(meta.Root)); err != nil {
		return
	}
	if err = e.writeVal(5, meta.RowCount); err != nil {
		return
	}
	if err = e.writeVal(6, uint64(meta.CreateTime)); err != nil {
		return
	}
	if err = e.writeVal(7, uint64(meta.UpdateTime)); err != nil {
		return
	}
	if err = e.writeBytes(8, meta.FileID[:]); err != nil {
		return
	}
	if _, err = e.Write([]byte{0}); err != nil {
		return
	}
	buf.Write(h.Sum(nil))

	n := copy(page, buf.Bytes())
	clear(page[n:])
	return
}

// Decode reads the header from page.
func Decode(page []byte, meta *Meta) (err error) {
	if len(page) < len(MagicCode) || !bytes.Equal(page[:len(MagicCode)], MagicCode[:]) {
		return ErrUnknownMagicCode
	}
	defer func() {
		if err != nil && !errors.Is(err, ErrCorrupt) && !errors.Is(err, ErrUnsupportedFileVersion) {
			err = fmt.Errorf("header: %v: %w", err, ErrCorrupt)
		}
	}()

	src := bytes.NewReader(page)
	h := blake3.New()
	r := io.TeeReader(src, h)
	d := tlvDecoder{r}
	if _, err = io.ReadFull(d, make([]byte, len(MagicCode))); err != nil {
		return
	}

	var key int64
	var val uint64
	for {
		key, err = d.readKey()
		if err != nil {
			return fmt.Errorf("header: %w", ErrCorrupt)
		}
		switch key {
		case 0:
			var sum [checksumSize]byte
			if _, err = io.ReadFull(src, sum[:]); err != nil {
				return fmt.Errorf("header checksum: %w", ErrCorrupt)
			}
			if !bytes.Equal(sum[:], h.Sum(nil)) {
				return fmt.Errorf("header checksum mismatch: %w", ErrCorrupt)
			}
			if meta.Version > Version {
				return fmt.Errorf("version %d: %w", meta.Version, ErrUnsupportedFileVersion)
			}
			return nil
		case 1:
			if val, err = d.readVal(); err != nil {
				return
			}
			meta.Version = byte(val)
		case 2:
			if val, err = d.readVal(); err != nil {
				return
			}
			meta.PageSize = uint32(val)
		case 3:
			if val, err = d.readVal(); err != nil {
				return
			}
			meta.PageCount = uint32(val)
		case 4:
			if val, err = d.readVal(); err != nil {
				return
			}
			meta.Root = sqlet.PageNo(val)
		case 5:
			if meta.RowCount, err = d.readVal(); err != nil {
				return
			}
		case 6:
			if val, err = d.readVal(); err != nil {
				return
			}
			meta.CreateTime = int64(val)
		case 7:
			if val, err = d.readVal(); err != nil {
				return
			}
			meta.UpdateTime = int64(val)
		case -8:
			if val, err = d.readVal(); err != nil {
				return
			}
			id, err := d.readBytes(val)
			if err != nil {
				return err
			}
			copy(meta.FileID[:], id)
		default:
			val, err = d.readVal()
			if err != nil {
				return
			}
			if key < 0 {
				if _, err = d.readBytes(val); err != nil {
					return
				}
			}
		}
	}
}

// tlvDecoder helps read TLV encoded data
type tlvDecoder struct {
	io.Reader
}

func (d tlvDecoder) ReadByte() (byte, error) {
	var buf [1]byte
	_, err := io.ReadFull(d, buf[:])
	return buf[0], err
}

func (d tlvDecoder) readVal() (uint64, error) {
	return binary.ReadUvarint(d)
}

func (d tlvDecoder) readKey() (int64, error) {
	return binary.ReadVarint(d)
}

func (d tlvDecoder) readBytes(length uint64) (bytes []byte, err error) {
	if length >= 1<<12 {
		err = fmt.Errorf("header field of %d bytes: %w", length, ErrCorrupt)
		return
	}

	bytes = make([]byte, length)
	_, err = io.ReadFull(d, bytes)
	return
}

// tlvEncoder helps write TLV encoded data
type tlvEncoder struct {
	io.Writer
}

func (e tlvEncoder) writeVal(key int64, val uint64) (err error) {
	if val == 0 {
		return
	}

	var buf [binary.MaxVarintLen64]byte

	n := binary.PutVarint(buf[:], key)
	if _, err = e.Write(buf[:n]); err != nil {
		return
	}

	n = binary.PutUvarint(buf[:], val)
	_, err = e.Write(buf[:n])
	return
}

func (e tlvEncoder) writeBytes(key int64, val []byte) (err error) {
	if val == nil {
		return
	}

	var buf [binary.MaxVarintLen64]byte

	n := binary.PutVarint(buf[:], -key)
	if _, err = e.Write(buf[:n]); err != nil {
		return
	}

	n = binary.PutUvarint(buf[:], uint64(len(val)))
	if _, err = e.Write(buf[:n]); err != nil {
		return
	}

	_, err = e.Write(val)
	return
}

// Size returns the encoded size of meta.
func Size(meta *Meta) int {
	size := len(MagicCode)
	size += sizeVal(1, uint64(meta.Version))
	size += sizeVal(2, uint64(meta.PageSize))
	size += sizeVal(3, uint64(meta.PageCount))
	size += sizeVal(4, uint64(meta.Root))
	size += sizeVal(5, meta.RowCount)
	size += sizeVal(6, uint64(meta.CreateTime))
	size += sizeVal(7, uint64(meta.UpdateTime))
	size += sizeBytes(8, meta.FileID[:])
	size += 1 // terminator
	size += checksumSize
	return size
}

func sizeVal(key int64, val uint64) int {
	if val == 0 {
		return 0
	}
	return sizeVarint(key) + sizeUvarint(val)
}

func sizeBytes(key int64, val []byte) int {
	if val == nil {
		return 0
	}
	return sizeVarint(-key) + sizeUvarint(uint64(len(val))) + len(val)
}

func sizeVarint(v int64) int {
	uv := uint64(v) << 1
	if v < 0 {
		uv = ^uv
	}
	return sizeUvarint(uv)
}

func sizeUvarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
