package dao

import (
	"fmt"
	"reflect"
)

// Parameter narrows a List call to entities whose named field matches one of
// the supplied values.
type Parameter struct {
	Name   string
	Values []string
}

func NewParameter(name string, values ...string) *Parameter {
	return &Parameter{Name: name, Values: values}
}

// Matches reports whether the entity's field identified by p.Name equals any
// of p.Values. Field values are compared through their string representation
// so that enum-like string types match their literal form. A missing field
// never matches.
func (p *Parameter) Matches(entity interface{}) bool {
	if p == nil || p.Name == "" {
		return true
	}
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return false
	}
	field := v.FieldByName(p.Name)
	if !field.IsValid() {
		return false
	}
	actual := fmt.Sprintf("%v", field.Interface())
	for _, candidate := range p.Values {
		if actual == candidate {
			return true
		}
	}
	return false
}
