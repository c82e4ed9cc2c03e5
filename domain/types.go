package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

// IDList is persisted as a JSON array in a TEXT column.
type IDList []types.ID

func (l IDList) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&l)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (l *IDList) Scan(v interface{}) error {
	if v == nil {
		*l = nil
		return nil
	}
	jsonString, ok := v.(string)
	if !ok {
		jsonBytes, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonBytes)
	}
	if jsonString == "" {
		*l = nil
		return nil
	}
	return json.Unmarshal([]byte(jsonString), l)
}

func (l IDList) Contains(id types.ID) bool {
	for _, member := range l {
		if member == id {
			return true
		}
	}
	return false
}

func (l IDList) Append(id types.ID) IDList {
	if l.Contains(id) {
		return l
	}
	return append(l, id)
}

// StringList is persisted as a JSON array in a TEXT column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&l)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (l *StringList) Scan(v interface{}) error {
	if v == nil {
		*l = nil
		return nil
	}
	jsonString, ok := v.(string)
	if !ok {
		jsonBytes, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonBytes)
	}
	if jsonString == "" {
		*l = nil
		return nil
	}
	return json.Unmarshal([]byte(jsonString), l)
}

func (l StringList) Contains(s string) bool {
	for _, member := range l {
		if member == s {
			return true
		}
	}
	return false
}
