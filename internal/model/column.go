// Package model 定义了网关、特征构建与持久化共用的数据结构。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// KeyPrimary 是主键列在 Column.Key 中的取值（与 MySQL DESCRIBE 一致）。
const KeyPrimary = "PRI"

// ValueKind 是单元格取值的类型标签。
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
)

// Column 描述数据表中的一列。Kind 在获取 schema 时确定，之后不再按行推断。
type Column struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Nullable bool      `json:"nullable"`
	Key      string    `json:"key"`
	Kind     ValueKind `json:"-"`
}

// IsPrimaryKey 报告该列是否为表的主键。
func (c Column) IsPrimaryKey() bool {
	return c.Key == KeyPrimary
}

// KindForType 根据数据库类型名推断列的取值类型。
func KindForType(dbType string) ValueKind {
	t := strings.ToLower(dbType)
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch strings.TrimSpace(strings.TrimPrefix(t, "unsigned ")) {
	case "int", "integer", "tinyint", "smallint", "mediumint", "bigint",
		"decimal", "numeric", "float", "double", "real", "double precision":
		return KindNumber
	default:
		return KindString
	}
}

// Convert 将驱动返回的原始值转换为带标签的标量。
func (c Column) Convert(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Null()
	case []byte:
		return c.fromText(string(v))
	case string:
		return c.fromText(v)
	case int:
		return Number(float64(v))
	case int8:
		return Number(float64(v))
	case int16:
		return Number(float64(v))
	case int32:
		return Number(float64(v))
	case int64:
		return Number(float64(v))
	case uint:
		return Number(float64(v))
	case uint8:
		return Number(float64(v))
	case uint16:
		return Number(float64(v))
	case uint32:
		return Number(float64(v))
	case uint64:
		return Number(float64(v))
	case float32:
		return Number(float64(v))
	case float64:
		return Number(v)
	case bool:
		if v {
			return Number(1)
		}
		return Number(0)
	case time.Time:
		return String(v.Format(time.RFC3339))
	default:
		return String(fmt.Sprint(v))
	}
}

func (c Column) fromText(s string) Value {
	if c.Kind == KindNumber {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return Number(f)
		}
	}
	return String(s)
}

// Value 是一个带类型标签的单元格取值：Null、String 或 Number。
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
}

// Null 返回一个空值。
func Null() Value {
	return Value{Kind: KindNull}
}

func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Text 返回取值的字符串形式，Null 为空串。
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON 输出裸标量：null、字符串或数字。
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = String(strconv.FormatBool(b))
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("unsupported cell value %s: %w", string(data), err)
		}
		*v = Number(f)
	}
	return nil
}

// Row 是一行记录：列名到取值的映射。
type Row map[string]Value

// Get 返回列的取值，缺失的列视为 Null。
func (r Row) Get(column string) Value {
	if v, ok := r[column]; ok {
		return v
	}
	return Null()
}
