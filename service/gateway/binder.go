package gateway

import (
	"fmt"

	"github.com/viant/structology/conv"
)

// Binder converts generic parameter maps carried by approval requests into
// the typed inputs of a concrete gateway adapter.
type Binder struct {
	converter *conv.Converter
}

// NewBinder creates a binder tolerant of unmapped keys so that extra
// metadata never fails an invocation.
func NewBinder() *Binder {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	return &Binder{converter: conv.NewConverter(options)}
}

// Bind populates target (a pointer to a struct) from parameters.
func (b *Binder) Bind(parameters map[string]interface{}, target interface{}) error {
	if target == nil {
		return fmt.Errorf("bind target was nil")
	}
	if len(parameters) == 0 {
		return nil
	}
	return b.converter.Convert(parameters, target)
}
