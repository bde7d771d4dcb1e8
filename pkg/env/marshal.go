// Package env renders configuration structs as .env files readable by
// godotenv and caarlos0/env.
package env

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// unsafeChars force a value into double quotes; godotenv would otherwise
// read it differently.
const unsafeChars = " \t\r\n#=\"'\\$!`"

var durationType = reflect.TypeOf(time.Duration(0))

// Marshal renders the env-tagged fields of a struct, one KEY=value line each.
//
// Lines follow field declaration order. Nested structs are flattened using
// their envPrefix tag. Zero values are skipped so loader defaults apply.
// Values godotenv would misread (spaces, '#', '=', quotes, '$') are double
// quoted and escaped the way godotenv expects.
func Marshal(c any) (string, error) {
	v := reflect.ValueOf(c)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", errors.New("env: nil value")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", fmt.Errorf("env: expected struct, got %s", v.Kind())
	}

	var lines []string
	if err := appendFields(&lines, v, ""); err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}

func appendFields(lines *[]string, v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		val := v.Field(i)

		if isNested(field.Type) {
			if val.Kind() == reflect.Pointer {
				if val.IsNil() {
					continue
				}
				val = val.Elem()
			}
			if err := appendFields(lines, val, prefix+field.Tag.Get("envPrefix")); err != nil {
				return err
			}
			continue
		}

		key, _, _ := strings.Cut(field.Tag.Get("env"), ",")
		if key == "" || val.IsZero() {
			continue
		}
		key = prefix + key

		raw, err := formatValue(val, field.Tag.Get("envSeparator"))
		if err != nil {
			return fmt.Errorf("env: %s: %w", key, err)
		}
		line, err := formatLine(key, raw)
		if err != nil {
			return fmt.Errorf("env: %s: %w", key, err)
		}
		*lines = append(*lines, line)
	}
	return nil
}

func isNested(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != reflect.TypeOf(time.Time{})
}

func formatValue(v reflect.Value, sep string) (string, error) {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String(), nil
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case reflect.Slice:
		if sep == "" {
			sep = ","
		}
		parts := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			p, err := formatValue(v.Index(i), "")
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		return strings.Join(parts, sep), nil
	default:
		return "", fmt.Errorf("unsupported kind %s", v.Kind())
	}
}

func formatLine(key, value string) (string, error) {
	if !strings.ContainsAny(value, unsafeChars) {
		return key + "=" + value, nil
	}
	// godotenv.Marshal owns the escaping rules its parser reverses.
	return godotenv.Marshal(map[string]string{key: value})
}
