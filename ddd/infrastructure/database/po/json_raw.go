package po

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONRaw 原样存储的 JSON 列
type JSONRaw json.RawMessage

// Value 实现driver.Valuer接口
func (j JSONRaw) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("invalid json value")
	}
	return string(j), nil
}

// Scan 实现sql.Scanner接口
func (j *JSONRaw) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = JSONRaw("{}")
	case []byte:
		*j = append(JSONRaw(nil), v...)
	case string:
		*j = JSONRaw(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONRaw", value)
	}
	return nil
}
