package bsonx

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
)

// ParseExtJSON parses extended JSON into a Value. Canonical and relaxed
// forms are both accepted: any JSON object whose first $-prefixed key
// names a known kind is interpreted as that kind's shape, and every
// other object is a regular document. Key order is preserved.
func ParseExtJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := extParseAny(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errs.New(errs.KindExtJSONShape, "trailing data after JSON value")
	}

	return v, nil
}

// ParseExtJSONDocument parses extended JSON that must denote a document.
func ParseExtJSONDocument(data []byte) (*Document, error) {
	v, err := ParseExtJSON(data)
	if err != nil {
		return nil, err
	}
	doc, ok := v.DocumentOK()
	if !ok {
		return nil, errs.Newf(errs.KindExtJSONShape, "expected a document, found %s", v.Type())
	}

	return doc, nil
}

func extParseAny(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, extTokenErr(err)
	}

	return extParseToken(dec, tok)
}

func extParseToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return extParseObject(dec)
		case '[':
			return extParseArray(dec)
		default:
			return Value{}, errs.Newf(errs.KindExtJSONShape, "unexpected delimiter %q", t.String())
		}
	case string:
		return StringValue(t), nil
	case bool:
		return BooleanValue(t), nil
	case json.Number:
		return extParseNumber(t)
	case nil:
		return NullValue(), nil
	default:
		return Value{}, errs.Newf(errs.KindExtJSONShape, "unexpected JSON token %v", tok)
	}
}

// extParseNumber maps plain JSON numbers the relaxed way: integers
// become int32 when they fit and int64 otherwise, everything else
// becomes a double.
func extParseNumber(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			if i >= -2147483648 && i <= 2147483647 {
				return Int32Value(int32(i)), nil
			}
			return Int64Value(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, errs.Newf(errs.KindExtJSONShape, "invalid JSON number %q", s)
	}

	return DoubleValue(f), nil
}

func extParseArray(dec *json.Decoder) (Value, error) {
	arr := Array{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, extTokenErr(err)
		}
		if d, ok := tok.(json.Delim); ok && d == ']' {
			return ArrayValue(arr), nil
		}
		v, err := extParseToken(dec, tok)
		if err != nil {
			return Value{}, errs.Prepend(err, strconv.Itoa(len(arr)))
		}
		arr = append(arr, v)
	}
}

func extParseObject(dec *json.Decoder) (Value, error) {
	doc := NewDocument()
	for {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, extTokenErr(err)
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return extConvertShape(doc)
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, errs.Newf(errs.KindExtJSONShape, "unexpected object key token %v", tok)
		}
		v, err := extParseAny(dec)
		if err != nil {
			return Value{}, errs.Prepend(err, key)
		}
		doc.Append(key, v)
	}
}

// extConvertShape turns a freshly parsed object into a typed value when
// its first $-prefixed key names a known kind, and leaves it as a
// regular document otherwise.
func extConvertShape(doc *Document) (Value, error) {
	var dollar string
	for _, e := range doc.entries {
		if strings.HasPrefix(e.key, "$") {
			dollar = e.key
			break
		}
	}

	switch dollar {
	case "$oid":
		s, err := extShapeString(doc, "$oid", 1)
		if err != nil {
			return Value{}, err
		}
		id, err := ObjectIDFromHex(s)
		if err != nil {
			return Value{}, errs.Wrapf(errs.KindExtJSONShape, err, "$oid %q", s)
		}
		return ObjectIDValue(id), nil

	case "$symbol":
		s, err := extShapeString(doc, "$symbol", 1)
		if err != nil {
			return Value{}, err
		}
		return SymbolValue(Symbol(s)), nil

	case "$numberInt":
		s, err := extShapeString(doc, "$numberInt", 1)
		if err != nil {
			return Value{}, err
		}
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, errs.Newf(errs.KindExtJSONShape, "$numberInt %q", s)
		}
		return Int32Value(int32(i)), nil

	case "$numberLong":
		s, err := extShapeString(doc, "$numberLong", 1)
		if err != nil {
			return Value{}, err
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, errs.Newf(errs.KindExtJSONShape, "$numberLong %q", s)
		}
		return Int64Value(i), nil

	case "$numberDouble":
		s, err := extShapeString(doc, "$numberDouble", 1)
		if err != nil {
			return Value{}, err
		}
		return extParseNumberDouble(s)

	case "$numberDecimal":
		s, err := extShapeString(doc, "$numberDecimal", 1)
		if err != nil {
			return Value{}, err
		}
		dec, err := ParseDecimal128(s)
		if err != nil {
			return Value{}, err
		}
		return Decimal128Value(dec), nil

	case "$binary":
		return extParseBinary(doc)

	case "$uuid":
		s, err := extShapeString(doc, "$uuid", 1)
		if err != nil {
			return Value{}, err
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return Value{}, errs.Wrapf(errs.KindExtJSONShape, err, "$uuid %q", s)
		}
		return BinaryValue(Binary{Subtype: format.SubtypeUUID, Data: u[:]}), nil

	case "$code":
		return extParseCode(doc)

	case "$timestamp":
		return extParseTimestamp(doc)

	case "$regularExpression":
		return extParseRegex(doc)

	case "$dbPointer":
		return extParseDBPointer(doc)

	case "$date":
		return extParseDate(doc)

	case "$minKey":
		if err := extShapeOne(doc, "$minKey"); err != nil {
			return Value{}, err
		}
		return MinKeyValue(), nil

	case "$maxKey":
		if err := extShapeOne(doc, "$maxKey"); err != nil {
			return Value{}, err
		}
		return MaxKeyValue(), nil

	case "$undefined":
		if doc.Len() != 1 {
			return Value{}, errs.New(errs.KindExtJSONShape, "$undefined allows no other fields")
		}
		v, _ := doc.Get("$undefined")
		if b, ok := v.BooleanOK(); !ok || !b {
			return Value{}, errs.New(errs.KindExtJSONShape, "$undefined must be true")
		}
		return UndefinedValue(), nil

	default:
		// No recognized $-key: a regular document.
		return DocumentValue(doc), nil
	}
}

func extParseNumberDouble(s string) (Value, error) {
	switch s {
	case "Infinity":
		return DoubleValue(math.Inf(1)), nil
	case "-Infinity":
		return DoubleValue(math.Inf(-1)), nil
	case "NaN":
		return DoubleValue(math.NaN()), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, errs.Newf(errs.KindExtJSONShape, "$numberDouble %q", s)
	}

	return DoubleValue(f), nil
}

func extParseBinary(doc *Document) (Value, error) {
	if doc.Len() != 1 {
		return Value{}, errs.New(errs.KindExtJSONShape, "$binary allows no other fields")
	}
	v, _ := doc.Get("$binary")
	inner, ok := v.DocumentOK()
	if !ok || inner.Len() != 2 {
		return Value{}, errs.New(errs.KindExtJSONShape, "$binary requires base64 and subType fields")
	}
	b64, okB, err := inner.GetString("base64")
	if err != nil || !okB {
		return Value{}, errs.New(errs.KindExtJSONShape, "$binary.base64 must be a string")
	}
	subHex, okS, err := inner.GetString("subType")
	if err != nil || !okS {
		return Value{}, errs.New(errs.KindExtJSONShape, "$binary.subType must be a string")
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Value{}, errs.Wrap(errs.KindExtJSONShape, err, "$binary.base64")
	}
	sub, err := strconv.ParseUint(subHex, 16, 8)
	if err != nil {
		return Value{}, errs.Newf(errs.KindExtJSONShape, "$binary.subType %q", subHex)
	}

	return BinaryValue(Binary{Subtype: format.Subtype(sub), Data: data}), nil
}

func extParseCode(doc *Document) (Value, error) {
	code, ok, err := doc.GetString("$code")
	if err != nil || !ok {
		return Value{}, errs.New(errs.KindExtJSONShape, "$code must be a string")
	}
	switch doc.Len() {
	case 1:
		return JavaScriptValue(JavaScript(code)), nil
	case 2:
		scope, ok, err := doc.GetDocument("$scope")
		if err != nil || !ok {
			return Value{}, errs.New(errs.KindExtJSONShape, "$scope must be a document")
		}
		return CodeWithScopeValue(CodeWithScope{Code: code, Scope: scope}), nil
	default:
		return Value{}, errs.New(errs.KindExtJSONShape, "$code allows only a $scope companion field")
	}
}

func extParseTimestamp(doc *Document) (Value, error) {
	if doc.Len() != 1 {
		return Value{}, errs.New(errs.KindExtJSONShape, "$timestamp allows no other fields")
	}
	v, _ := doc.Get("$timestamp")
	inner, ok := v.DocumentOK()
	if !ok || inner.Len() != 2 {
		return Value{}, errs.New(errs.KindExtJSONShape, "$timestamp requires t and i fields")
	}
	t, err := extShapeUint32(inner, "t")
	if err != nil {
		return Value{}, err
	}
	i, err := extShapeUint32(inner, "i")
	if err != nil {
		return Value{}, err
	}

	return TimestampValue(Timestamp{T: t, I: i}), nil
}

func extParseRegex(doc *Document) (Value, error) {
	if doc.Len() != 1 {
		return Value{}, errs.New(errs.KindExtJSONShape, "$regularExpression allows no other fields")
	}
	v, _ := doc.Get("$regularExpression")
	inner, ok := v.DocumentOK()
	if !ok || inner.Len() != 2 {
		return Value{}, errs.New(errs.KindExtJSONShape, "$regularExpression requires pattern and options fields")
	}
	pattern, okP, err := inner.GetString("pattern")
	if err != nil || !okP {
		return Value{}, errs.New(errs.KindExtJSONShape, "$regularExpression.pattern must be a string")
	}
	opts, okO, err := inner.GetString("options")
	if err != nil || !okO {
		return Value{}, errs.New(errs.KindExtJSONShape, "$regularExpression.options must be a string")
	}

	// Option order is preserved as given for round-trip fidelity;
	// canonical ordering applies on write.
	return RegexValue(Regex{Pattern: pattern, Options: opts}), nil
}

func extParseDBPointer(doc *Document) (Value, error) {
	if doc.Len() != 1 {
		return Value{}, errs.New(errs.KindExtJSONShape, "$dbPointer allows no other fields")
	}
	v, _ := doc.Get("$dbPointer")
	inner, ok := v.DocumentOK()
	if !ok || inner.Len() != 2 {
		return Value{}, errs.New(errs.KindExtJSONShape, "$dbPointer requires $ref and $id fields")
	}
	ref, okR, err := inner.GetString("$ref")
	if err != nil || !okR {
		return Value{}, errs.New(errs.KindExtJSONShape, "$dbPointer.$ref must be a string")
	}
	idVal, _ := inner.Get("$id")
	id, ok := idVal.ObjectIDOK()
	if !ok {
		return Value{}, errs.New(errs.KindExtJSONShape, "$dbPointer.$id must be an $oid")
	}

	return DBPointerValue(DBPointer{Ref: ref, ID: id}), nil
}

func extParseDate(doc *Document) (Value, error) {
	if doc.Len() != 1 {
		return Value{}, errs.New(errs.KindExtJSONShape, "$date allows no other fields")
	}
	v, _ := doc.Get("$date")
	switch v.Type() {
	case format.TypeString:
		s, _ := v.StringValueOK()
		d, err := ParseDateTimeRFC3339(s)
		if err != nil {
			return Value{}, err
		}
		return DateTimeValue(d), nil
	case format.TypeInt32, format.TypeInt64:
		// Canonical {"$numberLong":"..."} arrives here already converted;
		// bare numbers are accepted for interoperability.
		ms, _ := v.AsInt64OK()
		return DateTimeValue(DateTime(ms)), nil
	default:
		return Value{}, errs.Newf(errs.KindExtJSONShape, "$date must be a string or $numberLong, found %s", v.Type())
	}
}

func extShapeString(doc *Document, key string, wantLen int) (string, error) {
	if doc.Len() != wantLen {
		return "", errs.Newf(errs.KindExtJSONShape, "%s allows no other fields", key)
	}
	s, ok, err := doc.GetString(key)
	if err != nil || !ok {
		return "", errs.Newf(errs.KindExtJSONShape, "%s must be a string", key)
	}

	return s, nil
}

func extShapeOne(doc *Document, key string) error {
	if doc.Len() != 1 {
		return errs.Newf(errs.KindExtJSONShape, "%s allows no other fields", key)
	}
	v, _ := doc.Get(key)
	if i, ok := v.AsInt64OK(); !ok || i != 1 {
		return errs.Newf(errs.KindExtJSONShape, "%s must be the number 1", key)
	}

	return nil
}

func extShapeUint32(doc *Document, key string) (uint32, error) {
	v, ok := doc.Get(key)
	if !ok {
		return 0, errs.Newf(errs.KindExtJSONShape, "$timestamp.%s is required", key)
	}
	i, ok := v.AsInt64OK()
	if !ok || i < 0 || i > 4294967295 {
		return 0, errs.Newf(errs.KindExtJSONShape, "$timestamp.%s must be an unsigned 32-bit integer", key)
	}

	return uint32(i), nil
}

func extTokenErr(err error) error {
	if err == io.EOF {
		return errs.New(errs.KindExtJSONShape, "unexpected end of JSON input")
	}

	return errs.Wrap(errs.KindExtJSONShape, err, "invalid JSON")
}
