// Copyright 2025 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package val defines the tagged cell value that row data is normalized to
// between the sqlite driver, the SQL chunker, and the integrity checker.
package val

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Kind discriminates the payload of a Value.
type Kind uint8

const (
	NullKind Kind = iota
	IntKind
	FloatKind
	BoolKind
	TextKind
	BlobKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case IntKind:
		return "int"
	case FloatKind:
		return "float"
	case BoolKind:
		return "bool"
	case TextKind:
		return "text"
	case BlobKind:
		return "blob"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is a single table cell. Exactly one payload field is meaningful,
// selected by Kind. The zero Value is NULL.
type Value struct {
	Kind  Kind
	I     int64
	F     float64
	B     bool
	S     string
	Bytes []byte
}

func Null() Value           { return Value{} }
func Int(i int64) Value     { return Value{Kind: IntKind, I: i} }
func Float(f float64) Value { return Value{Kind: FloatKind, F: f} }
func Bool(b bool) Value     { return Value{Kind: BoolKind, B: b} }
func Text(s string) Value   { return Value{Kind: TextKind, S: s} }
func Blob(b []byte) Value   { return Value{Kind: BlobKind, Bytes: b} }

func (v Value) IsNull() bool { return v.Kind == NullKind }

// SQLiteTimeFormat is the text form sqlite's datetime() produces, used when a
// driver hands back time.Time for columns declared DATE or DATETIME.
const SQLiteTimeFormat = "2006-01-02 15:04:05"

// FromDriver converts a database/sql scan result into a Value. Integer widths
// are widened to int64, []byte is copied so the Value survives the driver
// reusing its buffer.
func FromDriver(x interface{}) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case int64:
		return Int(t)
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case uint64:
		return Int(int64(t))
	case float64:
		return Float(t)
	case float32:
		return Float(float64(t))
	case bool:
		return Bool(t)
	case string:
		return Text(t)
	case []byte:
		cp := make([]byte, len(t))
		copy(cp, t)
		return Blob(cp)
	case time.Time:
		return Text(t.Format(SQLiteTimeFormat))
	default:
		return Text(fmt.Sprint(t))
	}
}

// FromDriverRow converts a full scanned row.
func FromDriverRow(xs []interface{}) []Value {
	vals := make([]Value, len(xs))
	for i, x := range xs {
		vals[i] = FromDriver(x)
	}
	return vals
}

// Interface returns the value in the representation database/sql expects as a
// statement parameter.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case NullKind:
		return nil
	case IntKind:
		return v.I
	case FloatKind:
		return v.F
	case BoolKind:
		return v.B
	case TextKind:
		return v.S
	case BlobKind:
		return v.Bytes
	}
	return nil
}

// String renders the value for log and error messages. It is not the SQL
// literal form and not the checksum canonical form.
func (v Value) String() string {
	switch v.Kind {
	case NullKind:
		return "NULL"
	case IntKind:
		return strconv.FormatInt(v.I, 10)
	case FloatKind:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case BoolKind:
		if v.B {
			return "true"
		}
		return "false"
	case TextKind:
		return v.S
	case BlobKind:
		return fmt.Sprintf("blob(%d bytes)", len(v.Bytes))
	}
	return "?"
}

// MarshalJSON writes the natural JSON form of the cell. Blobs encode as
// base64 strings, matching encoding/json's []byte convention.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case NullKind:
		return []byte("null"), nil
	case IntKind:
		return []byte(strconv.FormatInt(v.I, 10)), nil
	case FloatKind:
		return json.Marshal(v.F)
	case BoolKind:
		return []byte(strconv.FormatBool(v.B)), nil
	case TextKind:
		return json.Marshal(v.S)
	case BlobKind:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.Bytes))
	}
	return nil, fmt.Errorf("val: cannot marshal kind %s", v.Kind)
}

// UnmarshalJSON restores a Value written by MarshalJSON. JSON cannot
// distinguish blobs from text, so strings always decode as TextKind; numeric
// values decode as IntKind when they round-trip exactly.
func (v *Value) UnmarshalJSON(data []byte) error {
	var x interface{}
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	switch t := x.(type) {
	case nil:
		*v = Null()
	case bool:
		*v = Bool(t)
	case float64:
		if i, ok := intFromFloat(t); ok {
			*v = Int(i)
		} else {
			*v = Float(t)
		}
	case string:
		*v = Text(t)
	default:
		return fmt.Errorf("val: cannot unmarshal %T", x)
	}
	return nil
}

// intFromFloat reports whether f is an integer exactly representable as
// int64. The range check comes first so the conversion itself never sees an
// out-of-range value.
func intFromFloat(f float64) (int64, bool) {
	if math.Trunc(f) != f || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	i := int64(f)
	return i, float64(i) == f
}

// FromJSON converts a JSON-decoded scalar into a Value. Numbers arrive as
// float64 and integral ones are restored to IntKind; arrays of byte numbers
// are the remote API's wire form for blobs.
func FromJSON(x interface{}) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		if i, ok := intFromFloat(t); ok {
			return Int(i)
		}
		return Float(t)
	case string:
		return Text(t)
	case []interface{}:
		b := make([]byte, len(t))
		for i, e := range t {
			if f, ok := e.(float64); ok {
				b[i] = byte(int64(f))
			}
		}
		return Blob(b)
	default:
		return Text(fmt.Sprint(t))
	}
}
