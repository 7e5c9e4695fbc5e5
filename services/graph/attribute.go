// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/dataaccess"
	"github.com/AleutianAI/AleutianGraph/services/geometry"
)

// PropertyType is the primitive type of an attribute.
type PropertyType int

const (
	TypeUnknown PropertyType = iota
	TypeInt32
	TypeDouble
	TypeString
	TypeGeometry
)

var propertyTypeNames = [...]string{"unknown", "int32", "double", "string", "geometry"}

// String returns the lower-case type name.
func (t PropertyType) String() string {
	if t >= 0 && int(t) < len(propertyTypeNames) {
		return propertyTypeNames[t]
	}
	return "PropertyType(" + strconv.Itoa(int(t)) + ")"
}

// ParsePropertyType is the inverse of String.
func ParsePropertyType(s string) (PropertyType, error) {
	for i, n := range propertyTypeNames {
		if i > 0 && strings.EqualFold(n, s) {
			return PropertyType(i), nil
		}
	}
	return TypeUnknown, fmt.Errorf("%w: type %q", ErrInvalidProperty, s)
}

// ColumnType maps the property type onto a relational column type.
func (t PropertyType) ColumnType() dataaccess.ColumnType {
	switch t {
	case TypeInt32:
		return dataaccess.TypeInt32
	case TypeDouble:
		return dataaccess.TypeDouble
	case TypeString:
		return dataaccess.TypeString
	case TypeGeometry:
		return dataaccess.TypeGeometry
	}
	return dataaccess.TypeUnknown
}

// PropertyTypeOf maps a relational column type onto a property type.
func PropertyTypeOf(t dataaccess.ColumnType) PropertyType {
	switch t {
	case dataaccess.TypeInt32:
		return TypeInt32
	case dataaccess.TypeDouble:
		return TypeDouble
	case dataaccess.TypeString:
		return TypeString
	case dataaccess.TypeGeometry:
		return TypeGeometry
	}
	return TypeUnknown
}

// Property declares one attribute slot of a vertex or edge.
type Property struct {
	Name string       `json:"name"`
	Type PropertyType `json:"type"`
	SRID int          `json:"srid,omitempty"`
}

// Validate reports whether p can be added to a schema.
func (p Property) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidProperty)
	}
	if p.Type <= TypeUnknown || p.Type > TypeGeometry {
		return fmt.Errorf("%w: %s has type %s", ErrInvalidProperty, p.Name, p.Type)
	}
	return nil
}

// Column returns the relational column that stores p. Column names are
// lower-cased.
func (p Property) Column() dataaccess.Column {
	return dataaccess.Column{Name: strings.ToLower(p.Name), Type: p.Type.ColumnType(), SRID: p.SRID}
}

// PropertyFromColumn builds a Property from a live column definition.
func PropertyFromColumn(c dataaccess.Column) Property {
	return Property{Name: c.Name, Type: PropertyTypeOf(c.Type), SRID: c.SRID}
}

// Value is a tagged attribute value. The zero Value is null.
type Value struct {
	kind PropertyType
	i    int32
	f    float64
	s    string
	g    geometry.Geometry
}

// Null is the null Value.
var Null = Value{}

// Int32Value wraps an int32.
func Int32Value(v int32) Value { return Value{kind: TypeInt32, i: v} }

// DoubleValue wraps a float64.
func DoubleValue(v float64) Value { return Value{kind: TypeDouble, f: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{kind: TypeString, s: v} }

// GeometryValue wraps a geometry. A nil geometry yields Null.
func GeometryValue(g geometry.Geometry) Value {
	if g == nil {
		return Null
	}
	return Value{kind: TypeGeometry, g: g}
}

// ValueOf wraps a driver value: nil, int32, int, int64, float64, string or
// geometry.Geometry.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null, nil
	case int32:
		return Int32Value(x), nil
	case int:
		return Int32Value(int32(x)), nil
	case int64:
		return Int32Value(int32(x)), nil
	case float64:
		return DoubleValue(x), nil
	case string:
		return StringValue(x), nil
	case geometry.Geometry:
		return GeometryValue(x), nil
	}
	return Null, fmt.Errorf("%w: unsupported value type %T", ErrInvalidProperty, v)
}

// Type returns the value's type; TypeUnknown for null.
func (v Value) Type() PropertyType { return v.kind }

// IsNull reports whether v holds no value.
func (v Value) IsNull() bool { return v.kind == TypeUnknown }

// Int32 returns the int32 payload.
func (v Value) Int32() (int32, bool) { return v.i, v.kind == TypeInt32 }

// Double returns the float64 payload.
func (v Value) Double() (float64, bool) { return v.f, v.kind == TypeDouble }

// Str returns the string payload.
func (v Value) Str() (string, bool) { return v.s, v.kind == TypeString }

// Geometry returns the geometry payload.
func (v Value) Geometry() (geometry.Geometry, bool) { return v.g, v.kind == TypeGeometry }

// Any returns the payload as a driver value, nil for null.
func (v Value) Any() any {
	switch v.kind {
	case TypeInt32:
		return v.i
	case TypeDouble:
		return v.f
	case TypeString:
		return v.s
	case TypeGeometry:
		return v.g
	}
	return nil
}

// String renders the value for display and comparison. Geometries render as
// WKT and null as the empty string.
func (v Value) String() string {
	switch v.kind {
	case TypeInt32:
		return strconv.FormatInt(int64(v.i), 10)
	case TypeDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString:
		return v.s
	case TypeGeometry:
		return v.g.WKT()
	}
	return ""
}

// AsFloat64 converts numeric values, including numeric strings.
func (v Value) AsFloat64() (float64, error) {
	switch v.kind {
	case TypeInt32:
		return float64(v.i), nil
	case TypeDouble:
		return v.f, nil
	case TypeString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric: %w", v.s, err)
		}
		return f, nil
	case TypeUnknown:
		return 0, fmt.Errorf("value is null")
	}
	return 0, fmt.Errorf("%s value is not numeric", v.kind)
}

// Conforms reports whether v may be stored in a slot declared by p. Null
// conforms to every property.
func (v Value) Conforms(p Property) bool {
	return v.IsNull() || v.kind == p.Type
}

type valueJSON struct {
	Type  PropertyType    `json:"t"`
	Value json.RawMessage `json:"v,omitempty"`
}

// MarshalJSON encodes v with its type tag. Geometries are stored as EWKT.
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Type: v.kind}
	var err error
	switch v.kind {
	case TypeInt32:
		out.Value, err = json.Marshal(v.i)
	case TypeDouble:
		out.Value, err = json.Marshal(v.f)
	case TypeString:
		out.Value, err = json.Marshal(v.s)
	case TypeGeometry:
		out.Value, err = json.Marshal(geometry.FormatWKT(v.g))
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*v = Null
	switch in.Type {
	case TypeUnknown:
		return nil
	case TypeInt32:
		var n int32
		if err := json.Unmarshal(in.Value, &n); err != nil {
			return err
		}
		*v = Int32Value(n)
	case TypeDouble:
		var f float64
		if err := json.Unmarshal(in.Value, &f); err != nil {
			return err
		}
		*v = DoubleValue(f)
	case TypeString:
		var s string
		if err := json.Unmarshal(in.Value, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case TypeGeometry:
		var s string
		if err := json.Unmarshal(in.Value, &s); err != nil {
			return err
		}
		g, err := geometry.ParseWKT(s)
		if err != nil {
			return err
		}
		*v = GeometryValue(g)
	default:
		return fmt.Errorf("%w: value type %d", ErrInvalidProperty, in.Type)
	}
	return nil
}
