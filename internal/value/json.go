package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// wireValue is the JSON-on-the-wire shape of a Value: a kind tag plus at
// most one populated payload field, the JSON codec's rendering of the
// tagged union (the default Codec in wireclient, spec §4.4).
type wireValue struct {
	Kind   string `json:"kind"`
	Int    *int64  `json:"int,omitempty"`
	Str    *string `json:"str,omitempty"`
	Bin    *string `json:"bin,omitempty"` // base64
	Bool   *bool   `json:"bool,omitempty"`
	Double *float64 `json:"double,omitempty"`
}

// MarshalJSON renders v as its wire shape.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: v.kind.String()}
	switch v.kind {
	case KindInteger:
		w.Int = &v.i
	case KindString:
		s := string(v.s)
		w.Str = &s
	case KindBinary:
		b := base64.StdEncoding.EncodeToString(v.s)
		w.Bin = &b
	case KindBoolean:
		w.Bool = &v.b
	case KindDouble:
		w.Double = &v.f
	case KindInfMin, KindInfMax, KindAutoIncrement, KindNone:
		// no payload
	default:
		return nil, fmt.Errorf("value: cannot marshal invalid kind %d", v.kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON reconstructs a Value from its wire shape.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "Integer":
		if w.Int == nil {
			return fmt.Errorf("value: Integer payload missing")
		}
		*v = Integer(*w.Int)
	case "String":
		if w.Str == nil {
			return fmt.Errorf("value: String payload missing")
		}
		*v = StringFrom(*w.Str)
	case "Binary":
		if w.Bin == nil {
			return fmt.Errorf("value: Binary payload missing")
		}
		b, err := base64.StdEncoding.DecodeString(*w.Bin)
		if err != nil {
			return fmt.Errorf("value: decode Binary payload: %w", err)
		}
		*v = Binary(b)
	case "Boolean":
		if w.Bool == nil {
			return fmt.Errorf("value: Boolean payload missing")
		}
		*v = Boolean(*w.Bool)
	case "Double":
		if w.Double == nil {
			return fmt.Errorf("value: Double payload missing")
		}
		*v = Double(*w.Double)
	case "InfMin":
		*v = InfMin()
	case "InfMax":
		*v = InfMax()
	case "AutoIncrement":
		*v = AutoIncrement()
	case "None":
		*v = None()
	default:
		return fmt.Errorf("value: unknown wire kind %q", w.Kind)
	}
	return nil
}
