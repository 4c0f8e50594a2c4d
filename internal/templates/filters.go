// internal/templates/filters.go
package templates

import (
	"fmt"
	"html/template"
	"reflect"
	"sort"
	"time"

	"github.com/spf13/cast"
)

// DatePresets maps the names accepted by the date filters to layouts.
var DatePresets = map[string]string{
	"short":    "2006-01-02",
	"long":     "January 2, 2006",
	"datetime": "2006-01-02 15:04",
	"iso":      time.RFC3339,
	"rfc2822":  time.RFC1123Z,
}

// Item is one key/value pair of a map, as produced by the items filter.
type Item struct {
	Key   string
	Value any
}

// Dated is implemented by values the newest filter can order.
type Dated interface {
	Date() time.Time
}

// Tagged is implemented by values the tagged filter can select.
type Tagged interface {
	HasTag(tag string) bool
}

// Funcs returns the filters available to every template:
//
//	{{ .Metadata.CreatedAt | date "short" }}        2024-06-29
//	{{ .Metadata.CreatedAt | publishedOn "long" }}  Published on <time ...>June 29, 2024 UTC</time>
//	{{ range items .Sections }}{{ .Key }}{{ end }}  map as sorted key/value pairs
//	{{ range newest (index .Sections "blog") }}     entries, most recent first
//	{{ range tagged "go" (index .Sections "blog") }}
func Funcs() template.FuncMap {
	return template.FuncMap{
		"date":        formatDate,
		"publishedOn": publishedOn,
		"items":       items,
		"newest":      newest,
		"tagged":      tagged,
	}
}

func formatDate(preset string, value any) (string, error) {
	layout, ok := DatePresets[preset]
	if !ok {
		return "", fmt.Errorf("date: unknown format %q", preset)
	}
	t, ok, err := toTime(value)
	if err != nil || !ok {
		return "", err
	}
	return t.Format(layout), nil
}

func publishedOn(preset string, value any) (template.HTML, error) {
	human, err := formatDate(preset, value)
	if err != nil || human == "" {
		return "", err
	}
	iso, err := formatDate("iso", value)
	if err != nil {
		return "", err
	}
	return template.HTML(fmt.Sprintf(`Published on <time datetime="%s">%s UTC</time>`,
		template.HTMLEscapeString(iso), template.HTMLEscapeString(human))), nil
}

// toTime converts value to a UTC time. A nil value (such as an unset
// updated_at) yields ok == false and no error.
func toTime(value any) (time.Time, bool, error) {
	if value == nil {
		return time.Time{}, false, nil
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return time.Time{}, false, nil
		}
		value = rv.Elem().Interface()
	}
	t, err := cast.ToTimeE(value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("date: %w", err)
	}
	return t.UTC(), true, nil
}

func items(m any) ([]Item, error) {
	if m == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("items: expected a map with string keys, got %T", m)
	}
	out := make([]Item, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out = append(out, Item{Key: iter.Key().String(), Value: iter.Value().Interface()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func newest(list any) ([]any, error) {
	elems, err := elements("newest", list)
	if err != nil {
		return nil, err
	}
	for _, e := range elems {
		if _, ok := e.(Dated); !ok {
			return nil, fmt.Errorf("newest: %T has no date", e)
		}
	}
	sort.SliceStable(elems, func(i, j int) bool {
		return elems[i].(Dated).Date().After(elems[j].(Dated).Date())
	})
	return elems, nil
}

func tagged(tag string, list any) ([]any, error) {
	elems, err := elements("tagged", list)
	if err != nil {
		return nil, err
	}
	out := elems[:0]
	for _, e := range elems {
		t, ok := e.(Tagged)
		if !ok {
			return nil, fmt.Errorf("tagged: %T has no tags", e)
		}
		if t.HasTag(tag) {
			out = append(out, e)
		}
	}
	return out, nil
}

// elements copies a slice into a fresh []any so filters never reorder the
// caller's data.
func elements(filter string, list any) ([]any, error) {
	if list == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%s: expected a list, got %T", filter, list)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
