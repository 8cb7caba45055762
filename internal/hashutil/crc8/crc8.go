// Package crc8 implements the 8-bit CRC used by FLAC frame headers:
// polynomial x^8 + x^2 + x^1 + x^0 (0x07), no reflection, zero initial
// value -- the same checksum libFLAC calls "crc8".
package crc8

import "github.com/sabletide/flac/internal/hashutil"

// Size of a CRC-8 checksum in bytes.
const Size = 1

// IEEE is the polynomial FLAC frame headers are checked against.
const IEEE = 0x07

// Table is a 256-word table representing
// the polynomial for efficient processing.
type Table [256]uint8

var ieeeTable = makeTable(IEEE)

// MakeTable returns a Table for the given polynomial, for use with
// Update.
func MakeTable(poly uint8) *Table {
	return makeTable(poly)
}

func makeTable(poly uint8) *Table {
	var t Table
	for i := 0; i < 256; i++ {
		crc := uint8(i)
		for b := 0; b < 8; b++ {
			if crc&0x80 != 0 {
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
	crc   uint8
	table *Table
}

// New creates a new hashutil.Hash8 computing the CRC-8 checksum using
// the IEEE polynomial.
func New() hashutil.Hash8 {
	return NewWithTable(ieeeTable)
}

// NewWithTable creates a new hashutil.Hash8 computing the CRC-8
// checksum using the given Table.
func NewWithTable(table *Table) hashutil.Hash8 {
	return &digest{table: table}
}

func (d *digest) Size() int {
	return Size
}

func (d *digest) BlockSize() int {
	return 1
}

func (d *digest) Reset() {
	d.crc = 0
}

func (d *digest) Write(p []byte) (int, error) {
	crc := d.crc
	for _, b := range p {
		crc = d.table[crc^b]
	}
	d.crc = crc
	return len(p), nil
}

// Sum8 returns the 8-bit checksum of the hash.
func (d *digest) Sum8() uint8 {
	return d.crc
}

func (d *digest) Sum(in []byte) []byte {
	return append(in, d.crc)
}

// Update returns the result of adding the bytes in p to crc.
func Update(crc uint8, table *Table, p []byte) uint8 {
	for _, b := range p {
		crc = table[crc^b]
	}
	return crc
}

// Checksum returns the CRC-8 checksum of data using the IEEE
// polynomial.
func Checksum(data []byte) uint8 {
	return Update(0, ieeeTable, data)
}
