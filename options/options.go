// package options turns tagged flag structs into CLI argument lists; its one
// flag struct is Slirp4netns, the slirp4netns helper's flagset.
package options

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// ToArgs creates an array of strings that you can pass to exec.Command(...) as CLI args.
func ToArgs[T any](s *T) []string {
	if s == nil {
		s = new(T)
	}
	sv := reflect.ValueOf(*s)
	if sv.Kind() == reflect.Pointer {
		sv = reflect.Indirect(sv)
	}
	return structToArgs(sv)
}

// structToArgs walks the fields of the struct value sv. Embedded structs are
// walked as values, so unexported embedded types flatten like exported ones.
func structToArgs(sv reflect.Value) []string {
	var ret []string
	st := sv.Type()
	for i := range st.NumField() {
		field := st.Field(i)
		fv := sv.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			ret = append(ret, structToArgs(fv)...)
			continue
		}
		flagTag, ok := field.Tag.Lookup("flag")
		if !ok {
			continue
		}
		flagParts := strings.Split(flagTag, ",")
		flagName := flagParts[0]
		keepZero := false
		joinEquals := false
		for _, modifier := range flagParts[1:] {
			switch strings.ToLower(modifier) {
			case "keepzero":
				keepZero = true
			case "join":
				joinEquals = true
			}
		}
		v := reflect.ValueOf(fv.Interface())

		if !keepZero && v.IsZero() {
			continue
		}
		if ret == nil {
			ret = []string{}
		}
		flagValue := ""
		fieldKind := field.Type.Kind()
		if fieldKind == reflect.Array || fieldKind == reflect.Slice {
			for i := 0; i < fv.Len(); i++ {
				av := fv.Index(i)
				ret = append(ret, flagName)
				ret = append(ret, fmt.Sprintf("%v", av))
			}
			continue
		} else if fieldKind == reflect.Map {
			mapVals := []string{}
			m := v.Interface().(map[string]string)
			keyIter := maps.Keys(m)
			keys := slices.Sorted(keyIter)
			for _, k := range keys {
				v := m[k]
				mapVals = append(mapVals, fmt.Sprintf("%v=%v", k, v))
			}
			flagValue = strings.Join(mapVals, ",")
		} else if fieldKind != reflect.Bool {
			flagValue = fmt.Sprintf("%v", fv.Interface())
		}
		if joinEquals && flagValue != "" {
			ret = append(ret, flagName+"="+flagValue)
			continue
		}
		ret = append(ret, flagName)
		if flagValue != "" {
			ret = append(ret, flagValue)
		}
	}
	return ret
}
