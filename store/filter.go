package store

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type condition struct {
	field string
	value any
}

// Filter is a small query builder covering what the core actually needs:
// field equality and array membership. The mongo store translates it to a
// bson document; the memory store interprets it directly.
type Filter struct {
	eq       []condition
	contains []condition
}

// Where starts an empty filter, matching every document.
func Where() Filter {
	return Filter{}
}

// Eq requires field == value.
func (f Filter) Eq(field string, value any) Filter {
	f.eq = append(append([]condition(nil), f.eq...), condition{field, value})
	return f
}

// Contains requires the array field to contain value.
func (f Filter) Contains(field string, value any) Filter {
	f.contains = append(append([]condition(nil), f.contains...), condition{field, value})
	return f
}

// ToBSON renders the filter as a mongo query document.
func (f Filter) ToBSON() bson.M {
	q := bson.M{}
	for _, c := range f.eq {
		q[c.field] = c.value
	}
	// Array membership in mongo is plain field equality against the
	// element value.
	for _, c := range f.contains {
		q[c.field] = c.value
	}
	return q
}

// Matches evaluates the filter against a decoded document.
func (f Filter) Matches(doc bson.M) bool {
	for _, c := range f.eq {
		if !valueEq(doc[c.field], c.value) {
			return false
		}
	}
	for _, c := range f.contains {
		arr, ok := doc[c.field].(primitive.A)
		if !ok {
			return false
		}
		found := false
		for _, v := range arr {
			if valueEq(v, c.value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// valueEq compares a decoded bson value with a caller-supplied one,
// tolerating the numeric widening the codec performs.
func valueEq(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// decodeAll unmarshals raw documents into *[]T.
func decodeAll(raws []bson.Raw, out any) error {
	ptr := reflect.ValueOf(out)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("query result must be a pointer to a slice, got %T", out)
	}
	slice := ptr.Elem()
	elemType := slice.Type().Elem()
	result := reflect.MakeSlice(slice.Type(), 0, len(raws))
	for _, raw := range raws {
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(raw, elem.Interface()); err != nil {
			return fmt.Errorf("decode query result: %w", err)
		}
		result = reflect.Append(result, elem.Elem())
	}
	slice.Set(result)
	return nil
}
