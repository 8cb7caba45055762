// Package crc16 implements the 16-bit CRC used to validate whole FLAC
// frames: polynomial x^16 + x^15 + x^2 + x^0 (0x8005), no reflection,
// zero initial value.
package crc16

import "github.com/sabletide/flac/internal/hashutil"

// Size of a CRC-16 checksum in bytes.
const Size = 2

// IEEE is the polynomial FLAC frames are checked against.
const IEEE = 0x8005

// Table is a 256-word table representing the
// polynomial for efficient processing.
type Table [256]uint16

var ieeeTable = makeTable(IEEE)

// MakeTable returns a Table for the given polynomial, for use with
// Update.
func MakeTable(poly uint16) *Table {
	return makeTable(poly)
}

func makeTable(poly uint16) *Table {
	var t Table
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

// digest represents the partial evaluation of a checksum.
type digest struct {
	crc   uint16
	table *Table
}

// New creates a new hashutil.Hash16 computing the CRC-16 checksum
// using the IEEE polynomial.
func New() hashutil.Hash16 {
	return NewWithTable(ieeeTable)
}

// NewWithTable creates a new hashutil.Hash16 computing the CRC-16
// checksum using the given Table.
func NewWithTable(table *Table) hashutil.Hash16 {
	return &digest{table: table}
}

func (d *digest) Write(p []byte) (int, error) {
	crc := d.crc
	for _, b := range p {
		crc = (crc << 8) ^ d.table[byte(crc>>8)^b]
	}
	d.crc = crc
	return len(p), nil
}

func (d *digest) Reset() {
	d.crc = 0
}

// Sum16 returns the 16-bit checksum of the hash.
func (d *digest) Sum16() uint16 {
	return d.crc
}

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum16()
	return append(in, byte(s>>8), byte(s))
}

func (d *digest) Size() int {
	return Size
}

func (d *digest) BlockSize() int {
	return 1
}

// Update returns the result of adding the bytes in p to crc.
func Update(crc uint16, table *Table, p []byte) uint16 {
	for _, b := range p {
		crc = (crc << 8) ^ table[byte(crc>>8)^b]
	}
	return crc
}

// Checksum returns the CRC-16 checksum of data using the IEEE
// polynomial.
func Checksum(data []byte) uint16 {
	return Update(0, ieeeTable, data)
}
