package term

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode returns the versioned encoding of v.
func Encode(v any) ([]byte, error) {
	return Append([]byte{Version}, v)
}

// Append appends the encoding of v, without a version byte, to buf.
//
// Besides the term types it accepts Go strings (as binaries), bools (as
// atoms), []byte and the built-in integer types.
func Append(buf []byte, v any) ([]byte, error) {
	switch v := v.(type) {
	case Atom:
		return appendAtom(buf, string(v)), nil
	case bool:
		if v {
			return appendAtom(buf, "true"), nil
		}
		return appendAtom(buf, "false"), nil
	case int:
		return appendInt(buf, int64(v)), nil
	case int64:
		return appendInt(buf, v), nil
	case int32:
		return appendInt(buf, int64(v)), nil
	case uint16:
		return appendInt(buf, int64(v)), nil
	case uint32:
		return appendInt(buf, int64(v)), nil
	case Binary:
		return appendBinary(buf, v), nil
	case []byte:
		return appendBinary(buf, v), nil
	case string:
		return appendBinary(buf, []byte(v)), nil
	case Tuple:
		if len(v) < 256 {
			buf = append(buf, tagSmallTuple, byte(len(v)))
		} else {
			buf = append(buf, tagLargeTuple)
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		}
		return appendAll(buf, v)
	case List:
		if len(v) == 0 {
			return append(buf, tagNil), nil
		}
		buf = append(buf, tagList)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		buf, err := appendAll(buf, v)
		if err != nil {
			return nil, err
		}
		return append(buf, tagNil), nil
	case Map:
		buf = append(buf, tagMap)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		var err error
		for _, p := range v {
			if buf, err = Append(buf, p.Key); err != nil {
				return nil, err
			}
			if buf, err = Append(buf, p.Value); err != nil {
				return nil, err
			}
		}
		return buf, nil
	}
	return nil, fmt.Errorf("%w of type %T", ErrType, v)
}

func appendAll(buf []byte, vs []any) ([]byte, error) {
	var err error
	for _, el := range vs {
		if buf, err = Append(buf, el); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendAtom(buf []byte, name string) []byte {
	if len(name) < 256 {
		buf = append(buf, tagSmallAtomUTF8, byte(len(name)))
	} else {
		buf = append(buf, tagAtomUTF8)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(name)))
	}
	return append(buf, name...)
}

func appendInt(buf []byte, i int64) []byte {
	switch {
	case i >= 0 && i <= math.MaxUint8:
		return append(buf, tagSmallInteger, byte(i))
	case i >= math.MinInt32 && i <= math.MaxInt32:
		buf = append(buf, tagInteger)
		return binary.BigEndian.AppendUint32(buf, uint32(int32(i)))
	}

	sign := byte(0)
	mag := uint64(i)
	if i < 0 {
		sign = 1
		mag = uint64(-i)
	}
	var digits []byte
	for ; mag > 0; mag >>= 8 {
		digits = append(digits, byte(mag))
	}
	buf = append(buf, tagSmallBig, byte(len(digits)), sign)
	return append(buf, digits...)
}

func appendBinary(buf, b []byte) []byte {
	buf = append(buf, tagBinary)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}
