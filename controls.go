package absorb

import (
	"cmp"
	"fmt"
	"slices"
)

// Control represents an editable parameter of a filter or viewer session.
// When the value is modified via ChangeValue the owner applies it immediately.
type Control interface {
	// Display/human readable name and description.
	Describe() (name, description string)
	// ActualValue returns the current value of the control.
	ActualValue() any
	// ChangeValue attempts to update the ActualValue to newValue.
	ChangeValue(newValue any) error
}

// ControlOrdered is a bounded numeric or ordered parameter, i.e: a slider.
type ControlOrdered[T cmp.Ordered] struct {
	Name        string
	Description string
	Value       T
	Min         T
	Max         T
	Step        T
	OnChange    func(T) error
}

func (co *ControlOrdered[T]) Describe() (name, description string) {
	return co.Name, co.Description
}
func (co *ControlOrdered[T]) ActualValue() any { return co.Value }
func (co *ControlOrdered[T]) ChangeValue(newValue any) error {
	v, ok := newValue.(T)
	if !ok {
		return fmt.Errorf("new value %T not of type %T", newValue, co.Value)
	}
	if v < co.Min || v > co.Max {
		return fmt.Errorf("new value %v exceeds limits %v..%v", v, co.Min, co.Max)
	}
	if co.OnChange != nil {
		if err := co.OnChange(v); err != nil {
			return err
		}
	}
	co.Value = v
	return nil
}

type integer interface {
	~int | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64
}

// enum best generated with stringer commands.
type enum interface {
	integer
	fmt.Stringer
}

// ControlEnum maps to a toggle or dropdown kind of list.
type ControlEnum[T enum] struct {
	Name        string
	Description string
	Value       T
	ValidValues []T
	OnChange    func(T) error
	// Current, if set, is queried by ActualValue so the control
	// reflects state changed outside of ChangeValue.
	Current func() T
}

func (ce *ControlEnum[T]) Describe() (name, description string) {
	return ce.Name, ce.Description
}

func (ce *ControlEnum[T]) ActualValue() any {
	if ce.Current != nil {
		ce.Value = ce.Current()
	}
	return ce.Value
}

func (ce *ControlEnum[T]) ChangeValue(newValue any) error {
	v, ok := newValue.(T)
	if !ok {
		return fmt.Errorf("new value %T not of type %T", newValue, ce.Value)
	}
	if !slices.Contains(ce.ValidValues, v) {
		return fmt.Errorf("value %v of %T not valid", v, v)
	}
	if ce.OnChange != nil {
		if err := ce.OnChange(v); err != nil {
			return err
		}
	}
	ce.Value = v
	return nil
}

// Next cycles the control to the value following the actual one in
// ValidValues, wrapping around. Two-valued enums behave as toggles.
func (ce *ControlEnum[T]) Next() error {
	if len(ce.ValidValues) == 0 {
		return fmt.Errorf("%s: no valid values", ce.Name)
	}
	cur := ce.ActualValue().(T)
	idx := slices.Index(ce.ValidValues, cur)
	return ce.ChangeValue(ce.ValidValues[(idx+1)%len(ce.ValidValues)])
}
