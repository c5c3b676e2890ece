package sis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The SIS modules are loose about scalar types; numbers arrive both bare and
// quoted, flags both as booleans and as 0/1. The flex types normalize that
// during decoding.

type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = ""

		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*s = flexString(asString)

		return nil
	}

	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*s = flexString(asNumber.String())

		return nil
	}

	return fmt.Errorf("cannot decode %s as a string", trimmed)
}

type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		value, err := asNumber.Int64()
		if err != nil {
			return err
		}
		*i = flexInt(value)

		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		value, err := strconv.Atoi(asString)
		if err != nil {
			return err
		}
		*i = flexInt(value)

		return nil
	}

	return fmt.Errorf("cannot decode %s as an integer", strings.TrimSpace(string(data)))
}

type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var asBool bool
	if err := json.Unmarshal(data, &asBool); err == nil {
		*b = flexBool(asBool)

		return nil
	}

	var asInt flexInt
	if err := asInt.UnmarshalJSON(data); err == nil {
		*b = asInt != 0

		return nil
	}

	return fmt.Errorf("cannot decode %s as a boolean", strings.TrimSpace(string(data)))
}
