package configreader

import (
	"encoding"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// Read fills out (a pointer to a struct with `name` tags) from three
// sources, weakest first: a config file (toml or yaml, located via the
// "config" field), command-line arguments, then environment variables.
func Read(arguments, environment []string, out interface{}) error {
	if _, _, err := valueAndType(out); err != nil {
		return fmt.Errorf("configreader.Read: %w", err)
	}

	if configPath, ok := lookup(arguments, environment, out, "config"); ok && configPath != "" {
		if err := readFile(configPath, out); err != nil {
			return fmt.Errorf("configreader.Read: %w", err)
		}
	}

	if err := eachField(out, func(name string, set func(string) error) error {
		if s, ok := fromArguments(arguments, name); ok {
			if err := set(s); err != nil {
				return fmt.Errorf("could not parse argument -%s: %w", name, err)
			}
		}

		if s, ok := fromEnvironment(environment, name); ok {
			if err := set(s); err != nil {
				return fmt.Errorf("could not parse environment variable %s: %w", strings.ToUpper(name), err)
			}
		}

		return nil
	}); err != nil {
		return fmt.Errorf("configreader.Read: %w", err)
	}

	return nil
}

func valueAndType(v interface{}) (reflect.Value, reflect.Type, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return reflect.Value{}, nil, fmt.Errorf("value must be a non-nil pointer; was instead %T", v)
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, nil, fmt.Errorf("value must be a pointer to a struct; was instead %T", v)
	}

	return rv, rv.Type(), nil
}

func readFile(path string, out interface{}) error {
	d, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("configreader.readFile: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(d, out); err != nil {
			return fmt.Errorf("configreader.readFile: could not parse %q as toml: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(d, out); err != nil {
			return fmt.Errorf("configreader.readFile: could not parse %q as yaml: %w", path, err)
		}
	default:
		return fmt.Errorf("configreader.readFile: unrecognised config file extension on %q", path)
	}

	return nil
}

func eachField(out interface{}, fn func(name string, set func(string) error) error) error {
	val, typ, err := valueAndType(out)
	if err != nil {
		return err
	}

	for i := 0; i < val.NumField(); i++ {
		vf := val.Field(i)
		tf := typ.Field(i)

		name := tf.Tag.Get("name")
		if name == "" || !vf.CanSet() {
			continue
		}

		if err := fn(name, setter(vf)); err != nil {
			return err
		}
	}

	return nil
}

func setter(vf reflect.Value) func(string) error {
	return func(s string) error {
		if u, ok := vf.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(s))
		}

		switch vf.Kind() {
		case reflect.String:
			vf.SetString(s)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return err
			}
			vf.SetBool(b)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return err
			}
			vf.SetInt(n)
			return nil
		default:
			return fmt.Errorf("unsupported field kind %s", vf.Kind())
		}
	}
}

func lookup(arguments, environment []string, obj interface{}, name string) (string, bool) {
	if s, ok := fromArguments(arguments, name); ok {
		return s, ok
	}

	if s, ok := fromEnvironment(environment, name); ok {
		return s, ok
	}

	return fromObject(obj, name)
}

func fromArguments(arguments []string, name string) (string, bool) {
	prefix := "-" + name

	for i := 0; i < len(arguments); i++ {
		if arguments[i] == prefix && i+1 < len(arguments) {
			return arguments[i+1], true
		} else if strings.HasPrefix(arguments[i], prefix+"=") {
			return strings.TrimPrefix(arguments[i], prefix+"="), true
		}
	}

	return "", false
}

func fromEnvironment(environment []string, name string) (string, bool) {
	prefix := strings.ToLower(name + "=")

	for i := 0; i < len(environment); i++ {
		if strings.HasPrefix(strings.ToLower(environment[i]), prefix) {
			return environment[i][len(prefix):], true
		}
	}

	return "", false
}

func fromObject(obj interface{}, name string) (string, bool) {
	val, typ, err := valueAndType(obj)
	if err != nil {
		return "", false
	}

	for i := 0; i < val.NumField(); i++ {
		if typ.Field(i).Tag.Get("name") != name {
			continue
		}

		if s, ok := val.Field(i).Interface().(string); ok {
			return s, s != ""
		}
	}

	return "", false
}
