package bsonx

import (
	"io"
	"reflect"
	"strconv"

	"github.com/google/uuid"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
)

// Unmarshaler lets a type consume a complete encoded document.
type Unmarshaler interface {
	UnmarshalBSON([]byte) error
}

// ValueUnmarshaler lets a type consume a single value of any kind.
type ValueUnmarshaler interface {
	UnmarshalBSONValue(Value) error
}

// Unmarshal decodes wire-format bytes into val, which must be a
// non-nil pointer. Struct fields are matched by `bson` tag name, then
// by the lower-camel-cased field name; unknown document keys are
// ignored and duplicate keys keep their first occurrence.
func Unmarshal(data []byte, val any, opts ...DecodeOption) error {
	doc, err := DecodeDocument(data, opts...)
	if err != nil {
		return err
	}

	return UnmarshalDocument(doc, val)
}

// UnmarshalFromReader reads one frame from r and decodes it into val.
func UnmarshalFromReader(r io.Reader, val any, opts ...DecodeOption) error {
	doc, err := ReadDocumentFrom(r, opts...)
	if err != nil {
		return err
	}

	return UnmarshalDocument(doc, val)
}

// UnmarshalDocument maps a materialized document into val.
func UnmarshalDocument(doc *Document, val any) error {
	return UnmarshalValue(DocumentValue(doc), val)
}

// UnmarshalValue maps a single value into val.
func UnmarshalValue(v Value, val any) error {
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errs.Newf(errs.KindCustom, "unmarshal target must be a non-nil pointer, got %T", val)
	}

	return valueInto(v, rv.Elem())
}

// UnmarshalExtJSON parses extended JSON (canonical or relaxed) and maps
// the result into val.
func UnmarshalExtJSON(data []byte, val any) error {
	v, err := ParseExtJSON(data)
	if err != nil {
		return err
	}

	return UnmarshalValue(v, val)
}

var (
	unmarshalerType      = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
	valueUnmarshalerType = reflect.TypeOf((*ValueUnmarshaler)(nil)).Elem()
)

func valueInto(v Value, rv reflect.Value) error {
	if !rv.CanSet() {
		return errs.Newf(errs.KindCustom, "cannot set value of type %s", rv.Type())
	}

	// Pointer targets: null clears, anything else allocates and recurses.
	if rv.Kind() == reflect.Ptr {
		if v.IsNull() || v.Type() == format.TypeUndefined {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return valueInto(v, rv.Elem())
	}

	if rv.CanAddr() {
		addr := rv.Addr()
		if addr.Type().Implements(valueUnmarshalerType) {
			return addr.Interface().(ValueUnmarshaler).UnmarshalBSONValue(v)
		}
		if addr.Type().Implements(unmarshalerType) {
			doc, ok := v.DocumentOK()
			if !ok {
				return mismatchErr(format.TypeDocument, v.Type())
			}
			data, err := doc.MarshalBinary()
			if err != nil {
				return err
			}
			return addr.Interface().(Unmarshaler).UnmarshalBSON(data)
		}
	}

	// Native targets pass through unchanged.
	switch rv.Type() {
	case valueType:
		rv.Set(reflect.ValueOf(v))
		return nil
	case objectIDType:
		id, ok := v.ObjectIDOK()
		if !ok {
			return mismatchErr(format.TypeObjectID, v.Type())
		}
		rv.Set(reflect.ValueOf(id))
		return nil
	case dateTimeType:
		dt, ok := v.DateTimeOK()
		if !ok {
			return mismatchErr(format.TypeDateTime, v.Type())
		}
		rv.Set(reflect.ValueOf(dt))
		return nil
	case timeTimeType:
		dt, ok := v.DateTimeOK()
		if !ok {
			return mismatchErr(format.TypeDateTime, v.Type())
		}
		rv.Set(reflect.ValueOf(dt.Time()))
		return nil
	case timestampType:
		ts, ok := v.TimestampOK()
		if !ok {
			return mismatchErr(format.TypeTimestamp, v.Type())
		}
		rv.Set(reflect.ValueOf(ts))
		return nil
	case decimal128Type:
		dec, ok := v.Decimal128OK()
		if !ok {
			return mismatchErr(format.TypeDecimal128, v.Type())
		}
		rv.Set(reflect.ValueOf(dec))
		return nil
	case binaryType:
		b, ok := v.BinaryOK()
		if !ok {
			return mismatchErr(format.TypeBinary, v.Type())
		}
		rv.Set(reflect.ValueOf(b))
		return nil
	case regexType:
		r, ok := v.RegexOK()
		if !ok {
			return mismatchErr(format.TypeRegex, v.Type())
		}
		rv.Set(reflect.ValueOf(r))
		return nil
	case javaScriptType:
		js, ok := v.JavaScriptOK()
		if !ok {
			return mismatchErr(format.TypeJavaScript, v.Type())
		}
		rv.Set(reflect.ValueOf(js))
		return nil
	case symbolType:
		s, ok := v.SymbolOK()
		if !ok {
			return mismatchErr(format.TypeSymbol, v.Type())
		}
		rv.Set(reflect.ValueOf(s))
		return nil
	case codeWithScopeType:
		c, ok := v.CodeWithScopeOK()
		if !ok {
			return mismatchErr(format.TypeCodeWithScope, v.Type())
		}
		rv.Set(reflect.ValueOf(c))
		return nil
	case dbPointerType:
		p, ok := v.DBPointerOK()
		if !ok {
			return mismatchErr(format.TypeDBPointer, v.Type())
		}
		rv.Set(reflect.ValueOf(p))
		return nil
	case minKeyType, maxKeyType, undefinedType, nullType:
		// Unit kinds carry no payload.
		return nil
	case uuidType:
		return uuidInto(v, rv)
	case rawDocumentType:
		doc, ok := v.DocumentOK()
		if !ok {
			return mismatchErr(format.TypeDocument, v.Type())
		}
		data, err := doc.MarshalBinary()
		if err != nil {
			return err
		}
		rv.Set(reflect.ValueOf(RawDocument(data)))
		return nil
	case arrayType:
		a, ok := v.ArrayOK()
		if !ok {
			return mismatchErr(format.TypeArray, v.Type())
		}
		rv.Set(reflect.ValueOf(a))
		return nil
	case documentPtrType.Elem():
		doc, ok := v.DocumentOK()
		if !ok {
			return mismatchErr(format.TypeDocument, v.Type())
		}
		rv.Set(reflect.ValueOf(*doc))
		return nil
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			anyVal, err := valueToAny(v)
			if err != nil {
				return err
			}
			if anyVal == nil {
				rv.Set(reflect.Zero(rv.Type()))
			} else {
				rv.Set(reflect.ValueOf(anyVal))
			}
			return nil
		}
		return errs.Newf(errs.KindCustom, "cannot unmarshal into non-empty interface %s", rv.Type())

	case reflect.Bool:
		b, ok := v.BooleanOK()
		if !ok {
			return mismatchErr(format.TypeBoolean, v.Type())
		}
		rv.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := v.AsInt64OK()
		if !ok {
			return mismatchErr(format.TypeInt64, v.Type())
		}
		if rv.OverflowInt(i) {
			return errs.Newf(errs.KindCustom, "value %d overflows %s", i, rv.Type())
		}
		rv.SetInt(i)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		i, ok := v.AsInt64OK()
		if !ok {
			return mismatchErr(format.TypeInt64, v.Type())
		}
		if i < 0 || rv.OverflowUint(uint64(i)) {
			return errs.Newf(errs.KindCustom, "value %d overflows %s", i, rv.Type())
		}
		rv.SetUint(uint64(i))
		return nil

	case reflect.Float32, reflect.Float64:
		switch v.Type() {
		case format.TypeDouble:
			f, _ := v.DoubleOK()
			rv.SetFloat(f)
			return nil
		case format.TypeInt32, format.TypeInt64:
			i, _ := v.AsInt64OK()
			rv.SetFloat(float64(i))
			return nil
		default:
			return mismatchErr(format.TypeDouble, v.Type())
		}

	case reflect.String:
		switch v.Type() {
		case format.TypeString:
			s, _ := v.StringValueOK()
			rv.SetString(s)
		case format.TypeSymbol:
			s, _ := v.SymbolOK()
			rv.SetString(string(s))
		case format.TypeJavaScript:
			js, _ := v.JavaScriptOK()
			rv.SetString(string(js))
		default:
			return mismatchErr(format.TypeString, v.Type())
		}
		return nil

	case reflect.Slice:
		return sliceInto(v, rv)

	case reflect.Array:
		return arrayInto(v, rv)

	case reflect.Map:
		return mapInto(v, rv)

	case reflect.Struct:
		return structInto(v, rv)

	default:
		return errs.Newf(errs.KindCustom, "cannot unmarshal into Go kind %s", rv.Kind())
	}
}

// uuidInto accepts binary subtypes 3 and 4 of exactly 16 bytes.
func uuidInto(v Value, rv reflect.Value) error {
	b, ok := v.BinaryOK()
	if !ok {
		return mismatchErr(format.TypeBinary, v.Type())
	}
	if len(b.Data) != 16 {
		return errs.Newf(errs.KindInvalidLength, "UUID binary has %d bytes, want 16", len(b.Data))
	}
	if b.Subtype != format.SubtypeUUID && b.Subtype != format.SubtypeUUIDOld {
		return errs.Newf(errs.KindRepresentationMismatch, "binary subtype 0x%02X is not a UUID subtype", byte(b.Subtype))
	}
	u, err := uuid.FromBytes(b.Data)
	if err != nil {
		return errs.Wrap(errs.KindInvalidLength, err, "decoding UUID bytes")
	}
	rv.Set(reflect.ValueOf(u))

	return nil
}

func sliceInto(v Value, rv reflect.Value) error {
	if v.IsNull() {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		b, ok := v.BinaryOK()
		if !ok {
			return mismatchErr(format.TypeBinary, v.Type())
		}
		data := make([]byte, len(b.Data))
		copy(data, b.Data)
		rv.SetBytes(data)
		return nil
	}
	a, ok := v.ArrayOK()
	if !ok {
		return mismatchErr(format.TypeArray, v.Type())
	}
	out := reflect.MakeSlice(rv.Type(), len(a), len(a))
	for i, elem := range a {
		if err := valueInto(elem, out.Index(i)); err != nil {
			return errs.Prepend(err, strconv.Itoa(i))
		}
	}
	rv.Set(out)

	return nil
}

func arrayInto(v Value, rv reflect.Value) error {
	a, ok := v.ArrayOK()
	if !ok {
		return mismatchErr(format.TypeArray, v.Type())
	}
	if len(a) != rv.Len() {
		return errs.Newf(errs.KindInvalidLength, "array has %d elements, target holds %d", len(a), rv.Len())
	}
	for i, elem := range a {
		if err := valueInto(elem, rv.Index(i)); err != nil {
			return errs.Prepend(err, strconv.Itoa(i))
		}
	}

	return nil
}

func mapInto(v Value, rv reflect.Value) error {
	if v.IsNull() {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}
	doc, ok := v.DocumentOK()
	if !ok {
		return mismatchErr(format.TypeDocument, v.Type())
	}
	if rv.Type().Key().Kind() != reflect.String {
		return errs.Newf(errs.KindInvalidMapKey, "map key kind %s", rv.Type().Key().Kind())
	}

	out := reflect.MakeMapWithSize(rv.Type(), doc.Len())
	seen := make(map[string]struct{}, doc.Len())
	for _, e := range doc.entries {
		if _, dup := seen[e.key]; dup {
			// First occurrence wins, matching Document.Get.
			continue
		}
		seen[e.key] = struct{}{}
		elem := reflect.New(rv.Type().Elem()).Elem()
		if err := valueInto(e.val, elem); err != nil {
			return errs.Prepend(err, e.key)
		}
		out.SetMapIndex(reflect.ValueOf(e.key).Convert(rv.Type().Key()), elem)
	}
	rv.Set(out)

	return nil
}

func structInto(v Value, rv reflect.Value) error {
	doc, ok := v.DocumentOK()
	if !ok {
		return mismatchErr(format.TypeDocument, v.Type())
	}
	fields, err := cachedFields(rv.Type())
	if err != nil {
		return err
	}

	byName := make(map[string]fieldInfo, len(fields))
	var inlined []fieldInfo
	for _, f := range fields {
		if f.inline {
			inlined = append(inlined, f)
			continue
		}
		byName[f.name] = f
	}

	seen := make(map[string]struct{}, doc.Len())
	var leftover *Document
	for _, e := range doc.entries {
		if _, dup := seen[e.key]; dup {
			continue
		}
		seen[e.key] = struct{}{}
		f, ok := byName[e.key]
		if !ok {
			if len(inlined) > 0 {
				if leftover == nil {
					leftover = NewDocument()
				}
				leftover.Append(e.key, e.val)
			}
			continue
		}
		if err := valueInto(e.val, rv.Field(f.index)); err != nil {
			return errs.Prepend(err, e.key)
		}
	}

	// Keys that matched no field flow into inline targets.
	for _, f := range inlined {
		if leftover == nil {
			break
		}
		fv := rv.Field(f.index)
		if fv.Kind() == reflect.Ptr && fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		if err := valueInto(DocumentValue(leftover), fv); err != nil {
			return errs.Prepend(err, f.name)
		}
	}

	return nil
}

// valueToAny converts a value to its natural Go representation for
// decoding into an empty interface, dispatching on the wire tag.
func valueToAny(v Value) (any, error) {
	switch v.Type() {
	case format.TypeDouble:
		f, _ := v.DoubleOK()
		return f, nil
	case format.TypeString:
		s, _ := v.StringValueOK()
		return s, nil
	case format.TypeDocument:
		// Documents stay as *Document so that order and duplicate keys
		// survive a round-trip through any.
		doc, _ := v.DocumentOK()
		return doc, nil
	case format.TypeArray:
		a, _ := v.ArrayOK()
		out := make([]any, len(a))
		for i, elem := range a {
			converted, err := valueToAny(elem)
			if err != nil {
				return nil, errs.Prepend(err, strconv.Itoa(i))
			}
			out[i] = converted
		}
		return out, nil
	case format.TypeBinary:
		b, _ := v.BinaryOK()
		return b, nil
	case format.TypeUndefined:
		return Undefined{}, nil
	case format.TypeObjectID:
		id, _ := v.ObjectIDOK()
		return id, nil
	case format.TypeBoolean:
		b, _ := v.BooleanOK()
		return b, nil
	case format.TypeDateTime:
		dt, _ := v.DateTimeOK()
		return dt, nil
	case format.TypeNull:
		return nil, nil
	case format.TypeRegex:
		r, _ := v.RegexOK()
		return r, nil
	case format.TypeDBPointer:
		p, _ := v.DBPointerOK()
		return p, nil
	case format.TypeJavaScript:
		js, _ := v.JavaScriptOK()
		return js, nil
	case format.TypeSymbol:
		s, _ := v.SymbolOK()
		return s, nil
	case format.TypeCodeWithScope:
		c, _ := v.CodeWithScopeOK()
		return c, nil
	case format.TypeInt32:
		i, _ := v.Int32OK()
		return i, nil
	case format.TypeTimestamp:
		ts, _ := v.TimestampOK()
		return ts, nil
	case format.TypeInt64:
		i, _ := v.Int64OK()
		return i, nil
	case format.TypeDecimal128:
		d, _ := v.Decimal128OK()
		return d, nil
	case format.TypeMinKey:
		return MinKey{}, nil
	case format.TypeMaxKey:
		return MaxKey{}, nil
	default:
		return nil, errs.Newf(errs.KindCustom, "cannot convert the zero Value")
	}
}

func mismatchErr(expected, actual format.Type) error {
	return errs.Newf(errs.KindUnexpectedType, "expected %s, found %s", expected, actual)
}
