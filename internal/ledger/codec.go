package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/atmx/bond-market/internal/address"
)

// ErrMalformed is returned when an instruction's data or account list
// cannot be decoded.
var ErrMalformed = errors.New("ledger: malformed instruction")

// Discriminator is the 8-byte tag prefixed to every encoded instruction:
// the first 8 bytes of sha256("global:<kind>").
func Discriminator(kind string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + kind))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// encoder appends little-endian fields to a buffer.
type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8) { e.buf = append(e.buf, v) }

func (e *encoder) u16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }

func (e *encoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

func (e *encoder) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

func (e *encoder) i64(v int64) { e.u64(uint64(v)) }

func (e *encoder) boolean(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) id(v address.ID) { e.buf = append(e.buf, v[:]...) }

func (e *encoder) bytes(v []byte) {
	e.u32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

func (e *encoder) str(v string) { e.bytes([]byte(v)) }

// decoder reads what encoder wrote. The first short read sticks in err and
// every later read returns zero values.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < n {
		d.err = fmt.Errorf("%w: need %d bytes, have %d", ErrMalformed, n, len(d.buf))
		return nil
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

func (d *decoder) u8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u16() uint16 {
	if b := d.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) i64() int64 { return int64(d.u64()) }

func (d *decoder) boolean() bool {
	switch v := d.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		if d.err == nil {
			d.err = fmt.Errorf("%w: invalid bool %d", ErrMalformed, v)
		}
		return false
	}
}

func (d *decoder) str() string {
	n := d.u32()
	if d.err == nil && int(n) > len(d.buf) {
		d.err = fmt.Errorf("%w: string of %d bytes", ErrMalformed, n)
		return ""
	}
	return string(d.take(int(n)))
}

// finish reports the sticky error, or trailing bytes if the data was longer
// than the layout.
func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.buf) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(d.buf))
	}
	return nil
}
