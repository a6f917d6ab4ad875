package db

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind is the closed set of value shapes the exporter writes.
type ValueKind int

const (
	Null ValueKind = iota
	Integer
	Float
	Bytes
	Text
)

func (k ValueKind) String() string {
	switch k {
	case Null:
		return "null"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Bytes:
		return "bytes"
	case Text:
		return "text"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Value is one column value, resolved once when the row is read.
// Integers keep their decimal text so unsigned BIGINT survives unchanged.
type Value struct {
	kind ValueKind
	num  string
	f    float64
	b    []byte
	s    string
}

func NullValue() Value { return Value{kind: Null} }
func IntValue(i int64) Value { return Value{kind: Integer, num: strconv.FormatInt(i, 10)} }
func UintValue(u uint64) Value { return Value{kind: Integer, num: strconv.FormatUint(u, 10)} }
func FloatValue(f float64) Value { return Value{kind: Float, f: f} }
func BytesValue(b []byte) Value { return Value{kind: Bytes, b: b} }
func TextValue(s string) Value { return Value{kind: Text, s: s} }
func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// EscapeText escapes s for use inside a single-quoted literal.
// The replacer works in one pass, so backslashes it introduces are never
// escaped a second time.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// Encode renders v as a SQL literal. It never fails.
func Encode(v Value) string {
	switch v.kind {
	case Null:
		return "NULL"
	case Integer:
		return v.num
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Bytes:
		if len(v.b) == 0 {
			return "''"
		}
		return "0x" + hex.EncodeToString(v.b)
	default:
		return "'" + EscapeText(v.s) + "'"
	}
}

// EncodeRow renders a row as a parenthesized tuple.
func EncodeRow(row []Value) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range row {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(Encode(v))
	}
	sb.WriteByte(')')
	return sb.String()
}

type typeClass int

const (
	classText typeClass = iota
	classInteger
	classFloat
	classBinary
)

func classify(typeName string) typeClass {
	name := strings.ToUpper(strings.TrimSpace(typeName))
	name = strings.TrimPrefix(name, "UNSIGNED ")
	switch name {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR":
		return classInteger
	case "FLOAT", "DOUBLE", "REAL":
		return classFloat
	case "BINARY", "VARBINARY", "TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB", "BIT", "GEOMETRY":
		return classBinary
	}
	return classText
}

// Decode converts a value scanned from the driver into a Value, using the
// column's database type name to tell text from binary and numbers.
func Decode(typeName string, raw any) Value {
	switch v := raw.(type) {
	case nil:
		return NullValue()
	case []byte:
		return decodeText(classify(typeName), v)
	case string:
		return decodeText(classify(typeName), []byte(v))
	case int64:
		return IntValue(v)
	case int32:
		return IntValue(int64(v))
	case int:
		return IntValue(int64(v))
	case uint64:
		return UintValue(v)
	case float64:
		return FloatValue(v)
	case float32:
		return FloatValue(float64(v))
	case bool:
		if v {
			return IntValue(1)
		}
		return IntValue(0)
	case time.Time:
		return TextValue(v.Format("2006-01-02 15:04:05.999999"))
	default:
		return TextValue(fmt.Sprint(v))
	}
}

func decodeText(class typeClass, b []byte) Value {
	switch class {
	case classInteger:
		s := string(b)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i)
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return UintValue(u)
		}
		return TextValue(s)
	case classFloat:
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return FloatValue(f)
		}
		return TextValue(string(b))
	case classBinary:
		out := make([]byte, len(b))
		copy(out, b)
		return BytesValue(out)
	}
	return TextValue(string(b))
}
