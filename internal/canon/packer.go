// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package canon implements the deterministic, length-prefixed byte
// encoding spec §6 requires ("fixed field order, length-prefixed variable
// data, no floats"), generalized from the teacher's
// utils/wrappers.Packer (PackByte/PackBytes/PackInt/PackLong).
package canon

import "fmt"

// Packer accumulates bytes for a canonical encoding. Errors are sticky:
// once Err is set, further Pack* calls are no-ops.
type Packer struct {
	Bytes []byte
	Err   error
}

// NewPacker returns a Packer with size bytes of pre-allocated capacity.
func NewPacker(size int) *Packer {
	return &Packer{Bytes: make([]byte, 0, size)}
}

// PackByte appends a single byte.
func (p *Packer) PackByte(b byte) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes, b)
}

// PackBytes appends a length-prefixed byte slice.
func (p *Packer) PackBytes(b []byte) {
	if p.Err != nil {
		return
	}
	p.PackLong(uint64(len(b)))
	p.Bytes = append(p.Bytes, b...)
}

// PackFixedBytes appends b with no length prefix; use only for
// fixed-width fields (e.g. a 32-byte hash) whose length is implied by
// the schema.
func (p *Packer) PackFixedBytes(b []byte) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes, b...)
}

// PackInt appends a uint32 as 4 big-endian bytes.
func (p *Packer) PackInt(i uint32) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes, byte(i>>24), byte(i>>16), byte(i>>8), byte(i))
}

// PackLong appends a uint64 as 8 big-endian bytes.
func (p *Packer) PackLong(l uint64) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes,
		byte(l>>56), byte(l>>48), byte(l>>40), byte(l>>32),
		byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
}

// Unpacker reads back a Packer-produced encoding.
type Unpacker struct {
	Bytes  []byte
	Offset int
	Err    error
}

// NewUnpacker wraps b for sequential reads.
func NewUnpacker(b []byte) *Unpacker {
	return &Unpacker{Bytes: b}
}

func (u *Unpacker) need(n int) bool {
	if u.Err != nil {
		return false
	}
	if u.Offset+n > len(u.Bytes) {
		u.Err = fmt.Errorf("canon: unexpected end of data, need %d bytes at offset %d (len %d)", n, u.Offset, len(u.Bytes))
		return false
	}
	return true
}

// UnpackByte reads one byte.
func (u *Unpacker) UnpackByte() byte {
	if !u.need(1) {
		return 0
	}
	b := u.Bytes[u.Offset]
	u.Offset++
	return b
}

// UnpackInt reads a big-endian uint32.
func (u *Unpacker) UnpackInt() uint32 {
	if !u.need(4) {
		return 0
	}
	b := u.Bytes[u.Offset : u.Offset+4]
	u.Offset += 4
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// UnpackLong reads a big-endian uint64.
func (u *Unpacker) UnpackLong() uint64 {
	if !u.need(8) {
		return 0
	}
	b := u.Bytes[u.Offset : u.Offset+8]
	u.Offset += 8
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// UnpackBytes reads a length-prefixed byte slice.
func (u *Unpacker) UnpackBytes() []byte {
	n := u.UnpackLong()
	if !u.need(int(n)) {
		return nil
	}
	b := u.Bytes[u.Offset : u.Offset+int(n)]
	u.Offset += int(n)
	return append([]byte(nil), b...)
}

// UnpackFixedBytes reads exactly n bytes with no length prefix.
func (u *Unpacker) UnpackFixedBytes(n int) []byte {
	if !u.need(n) {
		return nil
	}
	b := u.Bytes[u.Offset : u.Offset+n]
	u.Offset += n
	return append([]byte(nil), b...)
}

// Done reports whether every byte was consumed without error.
func (u *Unpacker) Done() error {
	if u.Err != nil {
		return u.Err
	}
	if u.Offset != len(u.Bytes) {
		return fmt.Errorf("canon: %d trailing bytes", len(u.Bytes)-u.Offset)
	}
	return nil
}
