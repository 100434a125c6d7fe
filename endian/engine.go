// Package endian provides byte order utilities for binary encoding and decoding.
//
// This package extends Go's standard encoding/binary package by combining
// ByteOrder and AppendByteOrder interfaces into a unified EndianEngine interface,
// so encoders can both patch fixed offsets and append without extra copies.
//
// The document wire format is little-endian for every multi-byte integer and
// float, so most callers want GetLittleEndianEngine. The big-endian engine
// exists for the object identifier's internal timestamp and counter fields,
// which are the only big-endian values in the format.
//
// All functions and methods in this package are safe for concurrent use.
// The returned EndianEngine instances are immutable and stateless.
package endian

import (
	"encoding/binary"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from
// encoding/binary into a single interface for convenient byte order operations.
//
// This interface is satisfied by binary.LittleEndian and binary.BigEndian from
// the standard library, making it fully compatible with existing Go code while
// providing access to both read/write and append operations.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine, the byte order of
// the document wire format.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine, used only for the object
// identifier's timestamp and counter fields.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}
