package hap

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/hapcam/hapcam/pkg/hap/tlv8"
)

type Character struct {
	AID         int      `json:"aid,omitempty"`
	IID         uint64   `json:"iid"`
	Type        string   `json:"type,omitempty"`
	Format      string   `json:"format,omitempty"`
	Value       any      `json:"value,omitempty"`
	Perms       []string `json:"perms,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Write new value with right format
func (c *Character) Write(v any) (err error) {
	switch c.Format {
	case FormatTLV8:
		switch v := v.(type) {
		case []byte:
			c.Value = base64.StdEncoding.EncodeToString(v)
		case string:
			c.Value = v
		default:
			c.Value, err = tlv8.MarshalBase64(v)
		}

	case FormatBool:
		switch v := v.(type) {
		case bool:
			c.Value = v
		case float64:
			c.Value = v != 0
		default:
			err = errors.New("hap: wrong bool value")
		}

	default:
		c.Value = v
	}
	return
}

// ReadTLV8 value to right struct
func (c *Character) ReadTLV8(v any) error {
	s, ok := c.Value.(string)
	if !ok {
		return errors.New("hap: no tlv8 value")
	}
	return tlv8.UnmarshalBase64(s, v)
}

func (c *Character) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return "ERROR"
	}
	return string(data)
}
