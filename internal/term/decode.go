package term

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Decode parses one versioned term from b. Bytes after the term are
// ignored.
func Decode(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, ErrTruncated
	}
	if b[0] != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, b[0])
	}
	d := decoder{buf: b, pos: 1}
	return d.term()
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.buf)-d.pos < n {
		return nil, ErrTruncated
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) u8() (int, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return int(b[0]), nil
}

func (d *decoder) u16() (int, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(b)), nil
}

func (d *decoder) u32() (int, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(b)
	// A length can never exceed what is left of the input
	if int64(n) > int64(len(d.buf)) {
		return 0, ErrTruncated
	}
	return int(n), nil
}

func (d *decoder) term() (any, error) {
	tag, err := d.u8()
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagSmallInteger:
		n, err := d.u8()
		return int64(n), err

	case tagInteger:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		return int64(int32(binary.BigEndian.Uint32(b))), nil

	case tagSmallBig:
		n, err := d.u8()
		if err != nil {
			return nil, err
		}
		return d.bigInt(n)

	case tagLargeBig:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		return d.bigInt(n)

	case tagAtom, tagAtomUTF8:
		n, err := d.u16()
		if err != nil {
			return nil, err
		}
		return d.atom(n)

	case tagSmallAtom, tagSmallAtomUTF8:
		n, err := d.u8()
		if err != nil {
			return nil, err
		}
		return d.atom(n)

	case tagSmallTuple:
		n, err := d.u8()
		if err != nil {
			return nil, err
		}
		return d.tuple(n)

	case tagLargeTuple:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		return d.tuple(n)

	case tagNil:
		return List{}, nil

	case tagString:
		n, err := d.u16()
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		l := make(List, n)
		for i, c := range b {
			l[i] = int64(c)
		}
		return l, nil

	case tagList:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		l := make(List, 0, n)
		for i := 0; i < n; i++ {
			v, err := d.term()
			if err != nil {
				return nil, err
			}
			l = append(l, v)
		}
		tail, err := d.term()
		if err != nil {
			return nil, err
		}
		if t, ok := tail.(List); !ok || len(t) != 0 {
			return nil, fmt.Errorf("%w: improper list", ErrUnsupported)
		}
		return l, nil

	case tagBinary:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		out := make(Binary, n)
		copy(out, b)
		return out, nil

	case tagMap:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		m := make(Map, 0, n)
		for i := 0; i < n; i++ {
			k, err := d.term()
			if err != nil {
				return nil, err
			}
			v, err := d.term()
			if err != nil {
				return nil, err
			}
			m = append(m, Pair{Key: k, Value: v})
		}
		return m, nil
	}

	return nil, fmt.Errorf("%w %d", ErrUnsupported, tag)
}

func (d *decoder) atom(n int) (any, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	return Atom(b), nil
}

func (d *decoder) tuple(n int) (any, error) {
	t := make(Tuple, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.term()
		if err != nil {
			return nil, err
		}
		t = append(t, v)
	}
	return t, nil
}

// bigInt decodes the sign byte and n little-endian digits that follow a
// big integer tag. Only values that fit in an int64 are accepted.
func (d *decoder) bigInt(n int) (any, error) {
	sign, err := d.u8()
	if err != nil {
		return nil, err
	}
	digits, err := d.take(n)
	if err != nil {
		return nil, err
	}
	var mag uint64
	for i := len(digits) - 1; i >= 0; i-- {
		if mag > math.MaxUint64>>8 {
			return nil, ErrRange
		}
		mag = mag<<8 | uint64(digits[i])
	}
	if sign == 0 {
		if mag > math.MaxInt64 {
			return nil, ErrRange
		}
		return int64(mag), nil
	}
	if mag > 1<<63 {
		return nil, ErrRange
	}
	return -int64(mag), nil
}
