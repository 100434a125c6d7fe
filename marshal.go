package bsonx

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
	"github.com/umberlabs/bsonx/internal/options"
)

// Marshaler lets a type emit itself as a complete encoded document.
type Marshaler interface {
	MarshalBSON() ([]byte, error)
}

// ValueMarshaler lets a type emit itself as a single value of any kind.
type ValueMarshaler interface {
	MarshalBSONValue() (Value, error)
}

type encodeConfig struct {
	noUnsignedCoercion bool
}

// EncodeOption configures reflection-based marshaling.
type EncodeOption = options.Option[*encodeConfig]

// WithoutUnsignedCoercion makes unsigned integer fields an error
// instead of widening them into int32/int64 when they fit.
func WithoutUnsignedCoercion() EncodeOption {
	return options.NoError(func(c *encodeConfig) {
		c.noUnsignedCoercion = true
	})
}

// Marshal encodes val into wire-format bytes. val must map to a
// document: a struct, a string-keyed map, a *Document, or a type
// implementing Marshaler.
//
// Scalars map per the widening rules: int8, int16 and int32 become
// int32, int64 stays int64, int becomes int32 when it fits and int64
// otherwise, unsigned integers widen to the smallest signed kind
// that fits and fail with an unsigned-overflow error when none does,
// []byte becomes generic binary, nil pointers become null. Struct
// fields honor `bson:"name,omitempty"` tags, "-" to skip, and
// ",inline" (implicit for untagged embedded structs).
func Marshal(val any, opts ...EncodeOption) ([]byte, error) {
	doc, err := MarshalDocument(val, opts...)
	if err != nil {
		return nil, err
	}

	return doc.MarshalBinary()
}

// MarshalDocument maps val into a materialized Document.
func MarshalDocument(val any, opts ...EncodeOption) (*Document, error) {
	v, err := MarshalValue(val, opts...)
	if err != nil {
		return nil, err
	}
	doc, ok := v.DocumentOK()
	if !ok {
		return nil, errs.Newf(errs.KindCustom, "%T does not map to a document, got %s", val, v.Type())
	}

	return doc, nil
}

// MarshalRaw encodes val and returns the frame in an owned raw view.
func MarshalRaw(val any, opts ...EncodeOption) (*RawDocumentBuffer, error) {
	data, err := Marshal(val, opts...)
	if err != nil {
		return nil, err
	}

	return &RawDocumentBuffer{data: data}, nil
}

// MarshalValue maps val into a Value of the appropriate kind.
func MarshalValue(val any, opts ...EncodeOption) (Value, error) {
	var cfg encodeConfig
	if err := options.Apply(&cfg, opts...); err != nil {
		return Value{}, err
	}

	return reflectToValue(reflect.ValueOf(val), &cfg)
}

// MarshalExtJSON maps val through the reflection framework and renders
// it as extended JSON, canonical or relaxed.
func MarshalExtJSON(val any, canonical bool, opts ...ExtJSONOption) ([]byte, error) {
	v, err := MarshalValue(val)
	if err != nil {
		return nil, err
	}
	if canonical {
		return v.MarshalCanonicalExtJSON(opts...)
	}

	return v.MarshalRelaxedExtJSON(opts...)
}

var (
	valueType         = reflect.TypeOf(Value{})
	documentPtrType   = reflect.TypeOf((*Document)(nil))
	arrayType         = reflect.TypeOf(Array{})
	objectIDType      = reflect.TypeOf(ObjectID{})
	dateTimeType      = reflect.TypeOf(DateTime(0))
	timestampType     = reflect.TypeOf(Timestamp{})
	decimal128Type    = reflect.TypeOf(Decimal128{})
	binaryType        = reflect.TypeOf(Binary{})
	regexType         = reflect.TypeOf(Regex{})
	javaScriptType    = reflect.TypeOf(JavaScript(""))
	symbolType        = reflect.TypeOf(Symbol(""))
	codeWithScopeType = reflect.TypeOf(CodeWithScope{})
	dbPointerType     = reflect.TypeOf(DBPointer{})
	minKeyType        = reflect.TypeOf(MinKey{})
	maxKeyType        = reflect.TypeOf(MaxKey{})
	undefinedType     = reflect.TypeOf(Undefined{})
	nullType          = reflect.TypeOf(Null{})
	rawDocumentType   = reflect.TypeOf(RawDocument(nil))
	timeTimeType      = reflect.TypeOf(time.Time{})
	uuidType          = reflect.TypeOf(uuid.UUID{})

	marshalerType      = reflect.TypeOf((*Marshaler)(nil)).Elem()
	valueMarshalerType = reflect.TypeOf((*ValueMarshaler)(nil)).Elem()
)

func reflectToValue(rv reflect.Value, cfg *encodeConfig) (Value, error) {
	if !rv.IsValid() {
		return NullValue(), nil
	}

	// Native kinds pass through unchanged.
	switch rv.Type() {
	case valueType:
		v := rv.Interface().(Value)
		if v.IsZero() {
			return NullValue(), nil
		}
		return v, nil
	case documentPtrType:
		d := rv.Interface().(*Document)
		if d == nil {
			return NullValue(), nil
		}
		return DocumentValue(d), nil
	case documentPtrType.Elem():
		d := rv.Interface().(Document)
		return DocumentValue(&d), nil
	case arrayType:
		return ArrayValue(rv.Interface().(Array)), nil
	case objectIDType:
		return ObjectIDValue(rv.Interface().(ObjectID)), nil
	case dateTimeType:
		return DateTimeValue(rv.Interface().(DateTime)), nil
	case timestampType:
		return TimestampValue(rv.Interface().(Timestamp)), nil
	case decimal128Type:
		return Decimal128Value(rv.Interface().(Decimal128)), nil
	case binaryType:
		return BinaryValue(rv.Interface().(Binary)), nil
	case regexType:
		return RegexValue(rv.Interface().(Regex)), nil
	case javaScriptType:
		return JavaScriptValue(rv.Interface().(JavaScript)), nil
	case symbolType:
		return SymbolValue(rv.Interface().(Symbol)), nil
	case codeWithScopeType:
		return CodeWithScopeValue(rv.Interface().(CodeWithScope)), nil
	case dbPointerType:
		return DBPointerValue(rv.Interface().(DBPointer)), nil
	case minKeyType:
		return MinKeyValue(), nil
	case maxKeyType:
		return MaxKeyValue(), nil
	case undefinedType:
		return UndefinedValue(), nil
	case nullType:
		return NullValue(), nil
	case rawDocumentType:
		doc, err := RawDocument(rv.Interface().(RawDocument)).Document()
		if err != nil {
			return Value{}, err
		}
		return DocumentValue(doc), nil
	case timeTimeType:
		return DateTimeValue(DateTimeFromTime(rv.Interface().(time.Time))), nil
	case uuidType:
		u := rv.Interface().(uuid.UUID)
		return BinaryValue(Binary{Subtype: format.SubtypeUUID, Data: append([]byte(nil), u[:]...)}), nil
	}

	if rv.Type().Implements(valueMarshalerType) {
		return rv.Interface().(ValueMarshaler).MarshalBSONValue()
	}
	if rv.Type().Implements(marshalerType) {
		data, err := rv.Interface().(Marshaler).MarshalBSON()
		if err != nil {
			return Value{}, errs.Wrap(errs.KindCustom, err, "MarshalBSON")
		}
		doc, err := DecodeDocument(data)
		if err != nil {
			return Value{}, err
		}
		return DocumentValue(doc), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return BooleanValue(rv.Bool()), nil

	case reflect.Int8, reflect.Int16, reflect.Int32:
		return Int32Value(int32(rv.Int())), nil

	case reflect.Int64:
		return Int64Value(rv.Int()), nil

	case reflect.Int:
		i := rv.Int()
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return Int32Value(int32(i)), nil
		}
		return Int64Value(i), nil

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return unsignedToValue(rv.Uint(), cfg)

	case reflect.Float32, reflect.Float64:
		return DoubleValue(rv.Float()), nil

	case reflect.String:
		return StringValue(rv.String()), nil

	case reflect.Slice:
		if rv.IsNil() {
			return NullValue(), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			data := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(data), rv)
			return BinaryValue(NewBinary(data)), nil
		}
		return sequenceToValue(rv, cfg)

	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			data := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(data), rv)
			return BinaryValue(NewBinary(data)), nil
		}
		return sequenceToValue(rv, cfg)

	case reflect.Map:
		return mapToValue(rv, cfg)

	case reflect.Struct:
		return structToValue(rv, cfg)

	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return NullValue(), nil
		}
		return reflectToValue(rv.Elem(), cfg)

	default:
		return Value{}, errs.Newf(errs.KindCustom, "cannot marshal Go kind %s", rv.Kind())
	}
}

func unsignedToValue(u uint64, cfg *encodeConfig) (Value, error) {
	if cfg.noUnsignedCoercion {
		return Value{}, errs.Newf(errs.KindUnsignedOverflow, "unsigned coercion disabled for value %d", u)
	}
	switch {
	case u <= math.MaxInt32:
		return Int32Value(int32(u)), nil
	case u <= math.MaxInt64:
		return Int64Value(int64(u)), nil
	default:
		return Value{}, errs.Newf(errs.KindUnsignedOverflow, "value %d", u)
	}
}

func sequenceToValue(rv reflect.Value, cfg *encodeConfig) (Value, error) {
	arr := make(Array, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, err := reflectToValue(rv.Index(i), cfg)
		if err != nil {
			return Value{}, errs.Prepend(err, strconv.Itoa(i))
		}
		arr = append(arr, elem)
	}

	return ArrayValue(arr), nil
}

// mapToValue encodes a map with sorted keys so output is deterministic.
func mapToValue(rv reflect.Value, cfg *encodeConfig) (Value, error) {
	if rv.IsNil() {
		return NullValue(), nil
	}
	if rv.Type().Key().Kind() != reflect.String {
		return Value{}, errs.Newf(errs.KindInvalidMapKey, "map key kind %s", rv.Type().Key().Kind())
	}

	keys := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		keys = append(keys, iter.Key().String())
	}
	sort.Strings(keys)

	doc := NewDocument()
	for _, k := range keys {
		elem, err := reflectToValue(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())), cfg)
		if err != nil {
			return Value{}, errs.Prepend(err, k)
		}
		doc.Set(k, elem)
	}

	return DocumentValue(doc), nil
}

func structToValue(rv reflect.Value, cfg *encodeConfig) (Value, error) {
	fields, err := cachedFields(rv.Type())
	if err != nil {
		return Value{}, err
	}

	doc := NewDocument()
	if err := appendStructFields(doc, rv, fields, cfg); err != nil {
		return Value{}, err
	}

	return DocumentValue(doc), nil
}

func appendStructFields(doc *Document, rv reflect.Value, fields []fieldInfo, cfg *encodeConfig) error {
	for _, f := range fields {
		fv := rv.Field(f.index)
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		if f.inline {
			if err := inlineField(doc, fv, cfg); err != nil {
				return errs.Prepend(err, f.name)
			}
			continue
		}
		elem, err := reflectToValue(fv, cfg)
		if err != nil {
			return errs.Prepend(err, f.name)
		}
		doc.Set(f.name, elem)
	}

	return nil
}

func inlineField(doc *Document, fv reflect.Value, cfg *encodeConfig) error {
	for fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	inner, err := reflectToValue(fv, cfg)
	if err != nil {
		return err
	}
	sub, ok := inner.DocumentOK()
	if !ok {
		return errs.Newf(errs.KindCustom, "inline field must map to a document, got %s", inner.Type())
	}
	for _, e := range sub.entries {
		doc.Set(e.key, e.val)
	}

	return nil
}

type fieldInfo struct {
	name      string
	index     int
	omitEmpty bool
	inline    bool
}

var fieldCache sync.Map // reflect.Type -> []fieldInfo

func cachedFields(t reflect.Type) ([]fieldInfo, error) {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]fieldInfo), nil
	}

	fields := make([]fieldInfo, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		tag := sf.Tag.Get("bson")
		if tag == "-" {
			continue
		}
		name, rest, _ := strings.Cut(tag, ",")
		info := fieldInfo{name: name, index: i}
		for _, opt := range strings.Split(rest, ",") {
			switch opt {
			case "omitempty":
				info.omitEmpty = true
			case "inline":
				info.inline = true
			}
		}
		if info.name == "" {
			info.name = strings.ToLower(sf.Name[:1]) + sf.Name[1:]
		}
		// Untagged embedded structs flatten into the parent document.
		if sf.Anonymous && tag == "" {
			info.inline = true
		}
		fields = append(fields, info)
	}

	fieldCache.Store(t, fields)

	return fields, nil
}

