package tlv8

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"strconv"
)

// Marshal encodes a struct with `tlv8:"N"` field tags.
// Slices are written as repeated records divided by an empty 0x00 record.
func Marshal(v any) ([]byte, error) {
	value := reflect.Indirect(reflect.ValueOf(v))
	if value.Kind() != reflect.Struct {
		return nil, errors.New("tlv8: marshal unsupported: " + value.Kind().String())
	}
	return marshalStruct(nil, value)
}

func MarshalBase64(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func marshalStruct(b []byte, value reflect.Value) ([]byte, error) {
	for i, n := 0, value.NumField(); i < n; i++ {
		t, ok, err := fieldTag(value.Type().Field(i))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if b, err = marshalValue(b, t, value.Field(i)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func marshalValue(b []byte, t byte, value reflect.Value) ([]byte, error) {
	switch value.Kind() {
	case reflect.Uint8:
		return append(b, t, 1, byte(value.Uint())), nil

	case reflect.Uint16:
		return appendRecord(b, t, binary.LittleEndian.AppendUint16(nil, uint16(value.Uint()))), nil

	case reflect.Uint32:
		return appendRecord(b, t, binary.LittleEndian.AppendUint32(nil, uint32(value.Uint()))), nil

	case reflect.Float32:
		u := math.Float32bits(float32(value.Float()))
		return appendRecord(b, t, binary.LittleEndian.AppendUint32(nil, u)), nil

	case reflect.String:
		return appendRecord(b, t, []byte(value.String())), nil

	case reflect.Array:
		if value.Type().Elem().Kind() != reflect.Uint8 {
			break
		}
		v := make([]byte, value.Len())
		reflect.Copy(reflect.ValueOf(v), value)
		return appendRecord(b, t, v), nil

	case reflect.Slice:
		var err error
		for i := 0; i < value.Len(); i++ {
			if i > 0 {
				b = append(b, 0, 0)
			}
			if b, err = marshalValue(b, t, value.Index(i)); err != nil {
				return nil, err
			}
		}
		return b, nil

	case reflect.Struct:
		v, err := marshalStruct(nil, value)
		if err != nil {
			return nil, err
		}
		return appendRecord(b, t, v), nil

	case reflect.Pointer:
		if value.IsNil() {
			return b, nil
		}
		return marshalValue(b, t, value.Elem())
	}

	return nil, errors.New("tlv8: marshal unsupported: " + value.Kind().String())
}

// Unmarshal decodes a TLV string into a struct with `tlv8:"N"` field tags.
// Records without a matching field are skipped.
func Unmarshal(b []byte, v any) error {
	value := reflect.ValueOf(v)
	if value.Kind() != reflect.Pointer || value.IsNil() {
		return errors.New("tlv8: unmarshal needs non nil pointer")
	}

	value = value.Elem()
	if value.Kind() == reflect.Interface {
		value = reflect.Indirect(value.Elem())
	}

	if value.Kind() != reflect.Struct {
		return errors.New("tlv8: unmarshal unsupported: " + value.Kind().String())
	}

	return unmarshalStruct(b, value)
}

func UnmarshalBase64(s string, v any) error {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return err
	}
	return Unmarshal(b, v)
}

func unmarshalStruct(b []byte, value reflect.Value) error {
	var nextItem bool

	for len(b) > 0 {
		t, v, n, err := readFragments(b)
		if err != nil {
			return err
		}
		b = b[n:]

		// slice item divider
		if t == 0 && n == 2 {
			nextItem = true
			continue
		}

		field, ok := findField(value, t)
		if !ok {
			nextItem = false
			continue
		}

		if nextItem && field.Kind() != reflect.Slice {
			return errors.New("tlv8: divider before non slice T=" + strconv.Itoa(int(t)))
		}
		nextItem = false

		if err = unmarshalValue(v, field); err != nil {
			return err
		}
	}

	return nil
}

// readFragments returns one value, joining 255 byte fragments of the same type.
func readFragments(b []byte) (t byte, v []byte, n int, err error) {
	t = b[0]

	for {
		if len(b) < n+2 {
			return 0, nil, 0, ErrShortRecord
		}

		l := int(b[n+1])
		if len(b) < n+2+l {
			return 0, nil, 0, ErrShortRecord
		}

		v = append(v, b[n+2:n+2+l]...)
		n += 2 + l

		if l < maxChunk || len(b) == n || b[n] != t {
			return
		}
	}
}

func unmarshalValue(v []byte, value reflect.Value) error {
	switch value.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		size := int(value.Type().Size())
		if len(v) != size {
			return errors.New("tlv8: wrong size for " + value.Kind().String() + ": " + strconv.Itoa(len(v)))
		}
		var u uint64
		for i := size - 1; i >= 0; i-- {
			u = u<<8 | uint64(v[i])
		}
		value.SetUint(u)

	case reflect.Float32:
		if len(v) != 4 {
			return errors.New("tlv8: wrong size for float32: " + strconv.Itoa(len(v)))
		}
		value.SetFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(v))))

	case reflect.String:
		value.SetString(string(v))

	case reflect.Array:
		if value.Type().Elem().Kind() != reflect.Uint8 {
			return errors.New("tlv8: unmarshal unsupported array: " + value.Type().String())
		}
		reflect.Copy(value, reflect.ValueOf(v))

	case reflect.Slice:
		value.Set(reflect.Append(value, reflect.Zero(value.Type().Elem())))
		return unmarshalValue(v, value.Index(value.Len()-1))

	case reflect.Struct:
		return unmarshalStruct(v, value)

	case reflect.Pointer:
		if value.IsNil() {
			value.Set(reflect.New(value.Type().Elem()))
		}
		return unmarshalValue(v, value.Elem())

	default:
		return errors.New("tlv8: unmarshal unsupported: " + value.Kind().String())
	}

	return nil
}

func findField(value reflect.Value, t byte) (reflect.Value, bool) {
	for i, n := 0, value.NumField(); i < n; i++ {
		if tag, ok, _ := fieldTag(value.Type().Field(i)); ok && tag == t {
			return value.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func fieldTag(field reflect.StructField) (byte, bool, error) {
	s, ok := field.Tag.Lookup("tlv8")
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || i > 255 {
		return 0, false, errors.New("tlv8: wrong tag for " + field.Name + ": " + s)
	}
	return byte(i), true, nil
}
