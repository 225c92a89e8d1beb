// Package tlv8 implements the HomeKit type-length-value encoding.
//
// Records are (type, length, value) triples with one byte for type and length.
// Values longer than 255 bytes are split into consecutive records of the same type.
package tlv8

import (
	"encoding/base64"
	"errors"
	"fmt"
)

const maxChunk = 255

var ErrShortRecord = errors.New("tlv8: record length exceeds input")

// Encode builds a TLV string from type/value pairs: Encode(1, "abc", 2, 5).
// Supported values: byte and other integers (single byte), uint16 and uint32
// (little endian), string, []byte and nil (zero length).
func Encode(args ...any) ([]byte, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("tlv8: odd number of arguments: %d", len(args))
	}

	var b []byte

	for i := 0; i < len(args); i += 2 {
		t, err := recordType(args[i])
		if err != nil {
			return nil, err
		}

		v, err := recordValue(args[i+1])
		if err != nil {
			return nil, err
		}

		b = appendRecord(b, t, v)
	}

	return b, nil
}

// MustEncode is Encode for arguments known to be valid at compile time.
func MustEncode(args ...any) []byte {
	b, err := Encode(args...)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode scans a TLV string and joins all values of the same type in stream order.
// On truncated input it returns the records decoded so far and ErrShortRecord.
func Decode(b []byte) (map[byte][]byte, error) {
	records := map[byte][]byte{}

	for len(b) > 0 {
		if len(b) < 2 {
			return records, ErrShortRecord
		}

		t, l := b[0], int(b[1])
		if len(b) < 2+l {
			return records, ErrShortRecord
		}

		// a zero length record still marks the type as present
		records[t] = append(records[t], b[2:2+l]...)
		b = b[2+l:]
	}

	return records, nil
}

func EncodeBase64(args ...any) (string, error) {
	b, err := Encode(args...)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeBase64(s string) (map[byte][]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

func appendRecord(b []byte, t byte, v []byte) []byte {
	for len(v) > maxChunk {
		b = append(b, t, maxChunk)
		b = append(b, v[:maxChunk]...)
		v = v[maxChunk:]
	}
	b = append(b, t, byte(len(v)))
	return append(b, v...)
}

func recordType(v any) (byte, error) {
	var i int64

	switch v := v.(type) {
	case byte:
		return v, nil
	case int:
		i = int64(v)
	case int8:
		i = int64(v)
	case int16:
		i = int64(v)
	case int32:
		i = int64(v)
	case int64:
		i = v
	case uint:
		i = int64(v)
	case uint16:
		i = int64(v)
	case uint32:
		i = int64(v)
	default:
		return 0, fmt.Errorf("tlv8: wrong type %T", v)
	}

	if i < 0 || i > 255 {
		return 0, fmt.Errorf("tlv8: type out of range: %d", i)
	}

	return byte(i), nil
}

func recordValue(v any) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case byte:
		return []byte{v}, nil
	case bool:
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case int:
		return []byte{byte(v)}, nil
	case int8:
		return []byte{byte(v)}, nil
	case int16:
		return []byte{byte(v)}, nil
	case int32:
		return []byte{byte(v)}, nil
	case int64:
		return []byte{byte(v)}, nil
	case uint:
		return []byte{byte(v)}, nil
	case uint16:
		return []byte{byte(v), byte(v >> 8)}, nil
	case uint32:
		return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}, nil
	}

	return nil, fmt.Errorf("tlv8: wrong value %T", v)
}
