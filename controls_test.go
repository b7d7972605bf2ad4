package absorb

import (
	"errors"
	"testing"
)

type testEnum uint8

const (
	enumA testEnum = iota
	enumB
	enumC
)

func (e testEnum) String() string { return [...]string{"A", "B", "C"}[e] }

func TestControlEnumNext(t *testing.T) {
	var applied []testEnum
	ce := &ControlEnum[testEnum]{
		Name:        "test",
		Value:       enumA,
		ValidValues: []testEnum{enumA, enumB},
		OnChange: func(v testEnum) error {
			applied = append(applied, v)
			return nil
		},
	}
	if err := ce.Next(); err != nil {
		t.Fatal(err)
	}
	if err := ce.Next(); err != nil {
		t.Fatal(err)
	}
	if ce.Value != enumA || len(applied) != 2 || applied[0] != enumB {
		t.Fatalf("toggle failed: value=%v applied=%v", ce.Value, applied)
	}
	if err := ce.ChangeValue(enumC); err == nil {
		t.Fatal("expected invalid value error")
	}
	if err := ce.ChangeValue(1); err == nil {
		t.Fatal("expected type error")
	}
}

func TestControlEnumCurrent(t *testing.T) {
	state := enumB
	ce := &ControlEnum[testEnum]{
		ValidValues: []testEnum{enumA, enumB},
		Current:     func() testEnum { return state },
		OnChange: func(v testEnum) error {
			state = v
			return nil
		},
	}
	if got := ce.ActualValue(); got != enumB {
		t.Fatalf("want B, got %v", got)
	}
	if err := ce.Next(); err != nil {
		t.Fatal(err)
	}
	if state != enumA {
		t.Fatalf("want A after toggle, got %v", state)
	}
}

func TestControlOrdered(t *testing.T) {
	errRejected := errors.New("rejected")
	co := &ControlOrdered[int]{
		Value: 5, Min: 1, Max: 10,
		OnChange: func(v int) error {
			if v == 7 {
				return errRejected
			}
			return nil
		},
	}
	if err := co.ChangeValue(11); err == nil {
		t.Fatal("expected limit error")
	}
	if err := co.ChangeValue(7); !errors.Is(err, errRejected) {
		t.Fatalf("want rejection, got %v", err)
	}
	if co.Value != 5 {
		t.Fatalf("rejected change applied: %d", co.Value)
	}
	if err := co.ChangeValue(8); err != nil || co.ActualValue() != 8 {
		t.Fatalf("change failed: %v %v", err, co.ActualValue())
	}
}
