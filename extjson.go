package bsonx

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
	"github.com/umberlabs/bsonx/internal/options"
)

// maxRelaxedDateMillis is 9999-12-31T23:59:59.999Z, the top of the
// relaxed datetime string range.
const maxRelaxedDateMillis = 253402300799999

type extJSONConfig struct {
	canonical     bool
	extendedYears bool
	indent        string
}

// ExtJSONOption configures extended JSON output.
type ExtJSONOption = options.Option[*extJSONConfig]

// WithExtendedYearRange lets relaxed output use the datetime string
// form for any year the time package can format, instead of falling
// back to canonical outside 1970-9999.
func WithExtendedYearRange() ExtJSONOption {
	return options.NoError(func(c *extJSONConfig) {
		c.extendedYears = true
	})
}

// WithIndent pretty-prints the output using the given indent string.
func WithIndent(indent string) ExtJSONOption {
	return options.NoError(func(c *extJSONConfig) {
		c.indent = indent
	})
}

// MarshalCanonicalExtJSON renders the value in canonical extended JSON:
// every kind keeps its dedicated $-shape so no type information is lost.
func (v Value) MarshalCanonicalExtJSON(opts ...ExtJSONOption) ([]byte, error) {
	return v.marshalExtJSON(true, opts)
}

// MarshalRelaxedExtJSON renders the value in relaxed extended JSON:
// int32, int64, and finite doubles become plain JSON numbers, and
// datetimes between 1970 and 9999 become RFC 3339 strings.
func (v Value) MarshalRelaxedExtJSON(opts ...ExtJSONOption) ([]byte, error) {
	return v.marshalExtJSON(false, opts)
}

func (v Value) marshalExtJSON(canonical bool, opts []ExtJSONOption) ([]byte, error) {
	cfg := extJSONConfig{canonical: canonical}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := extWriteValue(&buf, v, &cfg); err != nil {
		return nil, err
	}
	if cfg.indent != "" {
		var out bytes.Buffer
		if err := json.Indent(&out, buf.Bytes(), "", cfg.indent); err != nil {
			return nil, errs.Wrap(errs.KindCustom, err, "indenting extended JSON")
		}
		return out.Bytes(), nil
	}

	return buf.Bytes(), nil
}

// MarshalCanonicalExtJSON renders the document in canonical extended JSON.
func (d *Document) MarshalCanonicalExtJSON(opts ...ExtJSONOption) ([]byte, error) {
	return DocumentValue(d).MarshalCanonicalExtJSON(opts...)
}

// MarshalRelaxedExtJSON renders the document in relaxed extended JSON.
func (d *Document) MarshalRelaxedExtJSON(opts ...ExtJSONOption) ([]byte, error) {
	return DocumentValue(d).MarshalRelaxedExtJSON(opts...)
}

// String renders the document as compact relaxed extended JSON.
func (d *Document) String() string {
	b, err := d.MarshalRelaxedExtJSON()
	if err != nil {
		return fmt.Sprintf("Document(%d entries, unprintable: %v)", d.Len(), err)
	}

	return string(b)
}

// StringIndent renders the document as relaxed extended JSON indented
// by two spaces.
func (d *Document) StringIndent() string {
	b, err := d.MarshalRelaxedExtJSON(WithIndent("  "))
	if err != nil {
		return fmt.Sprintf("Document(%d entries, unprintable: %v)", d.Len(), err)
	}

	return string(b)
}

// GoString renders the document with kinds spelled out.
func (d *Document) GoString() string {
	if d == nil {
		return "bsonx.Document(nil)"
	}
	var sb strings.Builder
	sb.WriteString("bsonx.Document{")
	for i, e := range d.entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q: %s", e.key, e.val.GoString())
	}
	sb.WriteString("}")

	return sb.String()
}

func extWriteString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return errs.Wrap(errs.KindCustom, err, "encoding JSON string")
	}
	buf.Write(b)

	return nil
}

func extWriteValue(buf *bytes.Buffer, v Value, cfg *extJSONConfig) error {
	switch v.t {
	case format.TypeDouble:
		return extWriteDouble(buf, v.v.(float64), cfg)

	case format.TypeString:
		return extWriteString(buf, v.v.(string))

	case format.TypeDocument:
		return extWriteDocument(buf, v.v.(*Document), cfg)

	case format.TypeArray:
		buf.WriteByte('[')
		for i, elem := range v.v.(Array) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := extWriteValue(buf, elem, cfg); err != nil {
				return errs.Prepend(err, strconv.Itoa(i))
			}
		}
		buf.WriteByte(']')

	case format.TypeBinary:
		b := v.v.(Binary)
		buf.WriteString(`{"$binary":{"base64":"`)
		buf.WriteString(base64.StdEncoding.EncodeToString(b.Data))
		buf.WriteString(`","subType":"`)
		fmt.Fprintf(buf, "%02x", byte(b.Subtype))
		buf.WriteString(`"}}`)

	case format.TypeUndefined:
		buf.WriteString(`{"$undefined":true}`)

	case format.TypeObjectID:
		buf.WriteString(`{"$oid":"`)
		buf.WriteString(v.v.(ObjectID).Hex())
		buf.WriteString(`"}`)

	case format.TypeBoolean:
		if v.v.(bool) {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}

	case format.TypeDateTime:
		return extWriteDateTime(buf, v.v.(DateTime), cfg)

	case format.TypeNull:
		buf.WriteString("null")

	case format.TypeRegex:
		r := v.v.(Regex)
		buf.WriteString(`{"$regularExpression":{"pattern":`)
		if err := extWriteString(buf, r.Pattern); err != nil {
			return err
		}
		buf.WriteString(`,"options":`)
		if err := extWriteString(buf, r.CanonicalOptions()); err != nil {
			return err
		}
		buf.WriteString(`}}`)

	case format.TypeDBPointer:
		p := v.v.(DBPointer)
		buf.WriteString(`{"$dbPointer":{"$ref":`)
		if err := extWriteString(buf, p.Ref); err != nil {
			return err
		}
		buf.WriteString(`,"$id":{"$oid":"`)
		buf.WriteString(p.ID.Hex())
		buf.WriteString(`"}}}`)

	case format.TypeJavaScript:
		buf.WriteString(`{"$code":`)
		if err := extWriteString(buf, string(v.v.(JavaScript))); err != nil {
			return err
		}
		buf.WriteByte('}')

	case format.TypeSymbol:
		buf.WriteString(`{"$symbol":`)
		if err := extWriteString(buf, string(v.v.(Symbol))); err != nil {
			return err
		}
		buf.WriteByte('}')

	case format.TypeCodeWithScope:
		c := v.v.(CodeWithScope)
		buf.WriteString(`{"$code":`)
		if err := extWriteString(buf, c.Code); err != nil {
			return err
		}
		buf.WriteString(`,"$scope":`)
		if err := extWriteDocument(buf, c.Scope, cfg); err != nil {
			return err
		}
		buf.WriteByte('}')

	case format.TypeInt32:
		i := v.v.(int32)
		if cfg.canonical {
			buf.WriteString(`{"$numberInt":"`)
			buf.WriteString(strconv.FormatInt(int64(i), 10))
			buf.WriteString(`"}`)
		} else {
			buf.WriteString(strconv.FormatInt(int64(i), 10))
		}

	case format.TypeTimestamp:
		ts := v.v.(Timestamp)
		fmt.Fprintf(buf, `{"$timestamp":{"t":%d,"i":%d}}`, ts.T, ts.I)

	case format.TypeInt64:
		i := v.v.(int64)
		if cfg.canonical {
			buf.WriteString(`{"$numberLong":"`)
			buf.WriteString(strconv.FormatInt(i, 10))
			buf.WriteString(`"}`)
		} else {
			buf.WriteString(strconv.FormatInt(i, 10))
		}

	case format.TypeDecimal128:
		buf.WriteString(`{"$numberDecimal":"`)
		buf.WriteString(v.v.(Decimal128).String())
		buf.WriteString(`"}`)

	case format.TypeMinKey:
		buf.WriteString(`{"$minKey":1}`)

	case format.TypeMaxKey:
		buf.WriteString(`{"$maxKey":1}`)

	default:
		return errs.New(errs.KindCustom, "cannot render the zero Value")
	}

	return nil
}

func extWriteDocument(buf *bytes.Buffer, d *Document, cfg *extJSONConfig) error {
	buf.WriteByte('{')
	if d != nil {
		for i, e := range d.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := extWriteString(buf, e.key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := extWriteValue(buf, e.val, cfg); err != nil {
				return errs.Prepend(err, e.key)
			}
		}
	}
	buf.WriteByte('}')

	return nil
}

// extFormatDouble renders a finite double the way the canonical form
// expects: shortest round-trip representation, with a trailing ".0"
// added to integral values so the number reads as a double.
func extFormatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'G', -1, 64)
	if !strings.ContainsAny(s, ".E") {
		s += ".0"
	}

	return s
}

func extWriteDouble(buf *bytes.Buffer, f float64, cfg *extJSONConfig) error {
	special := math.IsNaN(f) || math.IsInf(f, 0)
	if !cfg.canonical && !special {
		// Relaxed: a plain JSON number. strconv 'g' emits valid JSON
		// for every finite double.
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		return nil
	}

	buf.WriteString(`{"$numberDouble":"`)
	switch {
	case math.IsNaN(f):
		buf.WriteString("NaN")
	case math.IsInf(f, 1):
		buf.WriteString("Infinity")
	case math.IsInf(f, -1):
		buf.WriteString("-Infinity")
	default:
		buf.WriteString(extFormatDouble(f))
	}
	buf.WriteString(`"}`)

	return nil
}

func extWriteDateTime(buf *bytes.Buffer, d DateTime, cfg *extJSONConfig) error {
	inRange := d >= 0 && d <= maxRelaxedDateMillis
	if !cfg.canonical && (inRange || cfg.extendedYears) {
		buf.WriteString(`{"$date":"`)
		buf.WriteString(d.FormatRFC3339())
		buf.WriteString(`"}`)
		return nil
	}

	buf.WriteString(`{"$date":{"$numberLong":"`)
	buf.WriteString(strconv.FormatInt(int64(d), 10))
	buf.WriteString(`"}}`)

	return nil
}
