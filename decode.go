package bsonx

import (
	"io"
	"strconv"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
	"github.com/umberlabs/bsonx/internal/options"
	"github.com/umberlabs/bsonx/wire"
)

type decodeConfig struct {
	utf8Lossy bool
}

// DecodeOption configures decoding of wire-format bytes.
type DecodeOption = options.Option[*decodeConfig]

// WithUTF8Lossy makes the decoder replace invalid UTF-8 sequences in
// string payloads with U+FFFD instead of failing. The default is
// strict: invalid UTF-8 aborts the decode.
func WithUTF8Lossy() DecodeOption {
	return options.NoError(func(c *decodeConfig) {
		c.utf8Lossy = true
	})
}

// DecodeDocument parses a complete wire-format frame into a Document.
//
// The input must be exactly one frame: the declared length must equal
// len(data). Every nested length is validated against the remaining
// input, array key sequences are checked, and all strings are validated
// as UTF-8 (strict by default, see WithUTF8Lossy). Decoding failures
// leave no partial result.
//
// Parameters:
//   - data: Encoded document bytes
//   - opts: Optional decode configuration
//
// Returns:
//   - *Document: The materialized document
//   - error: errs.KindMalformedBytes on any structural violation,
//     errs.KindUTF8 on invalid strings under strict decoding
func DecodeDocument(data []byte, opts ...DecodeOption) (*Document, error) {
	var cfg decodeConfig
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	r := wire.NewReader(data)
	doc, err := decodeDoc(r, &cfg, true)
	if err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, errs.Newf(errs.KindMalformedBytes, "declared length %d does not match input length %d", r.Pos(), len(data))
	}

	return doc, nil
}

// ReadDocumentFrom reads one frame from r and decodes it. The reader is
// left positioned at the first byte after the frame.
func ReadDocumentFrom(r io.Reader, opts ...DecodeOption) (*Document, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "reading document length")
	}
	length := int32(le.Uint32(lenBuf[:]))
	if length < 5 {
		return nil, errs.Newf(errs.KindMalformedBytes, "document length %d is too small", length)
	}
	if length > MaxDocumentSize {
		return nil, errs.Wrapf(errs.KindMalformedBytes, errs.ErrDocumentTooLarge, "declared length %d", length)
	}

	data := make([]byte, length)
	copy(data, lenBuf[:])
	if _, err := io.ReadFull(r, data[4:]); err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "reading document body")
	}

	return DecodeDocument(data, opts...)
}

func decodeDoc(r *wire.Reader, cfg *decodeConfig, top bool) (*Document, error) {
	start := r.Pos()
	length, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if length < 5 {
		return nil, errs.Newf(errs.KindMalformedBytes, "document length %d at offset %d is too small", length, start)
	}
	if top && length > MaxDocumentSize {
		return nil, errs.Wrapf(errs.KindMalformedBytes, errs.ErrDocumentTooLarge, "declared length %d", length)
	}
	end := start + int(length)
	if end > start+4+r.Remaining() {
		return nil, errs.Newf(errs.KindMalformedBytes, "document length %d at offset %d exceeds input", length, start)
	}

	doc := NewDocument()
	for {
		tag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if tag == 0x00 {
			if r.Pos() != end {
				return nil, errs.Newf(errs.KindMalformedBytes, "document terminator at offset %d, expected at %d", r.Pos()-1, end-1)
			}
			return doc, nil
		}
		if r.Pos() >= end {
			return nil, errs.Newf(errs.KindMalformedBytes, "element at offset %d overruns document end %d", r.Pos()-1, end)
		}

		t, ok := format.Lookup(tag)
		if !ok {
			return nil, errs.Newf(errs.KindMalformedBytes, "unknown element tag 0x%02X at offset %d", tag, r.Pos()-1)
		}
		key, err := r.ReadCString(cfg.utf8Lossy)
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(r, t, cfg)
		if err != nil {
			return nil, errs.Prepend(err, key)
		}
		if r.Pos() > end {
			return nil, errs.Prepend(errs.Newf(errs.KindMalformedBytes, "element overruns document end %d", end), key)
		}
		doc.Append(key, val)
	}
}

func decodeValue(r *wire.Reader, t format.Type, cfg *decodeConfig) (Value, error) {
	switch t {
	case format.TypeDouble:
		f, err := r.ReadDouble()
		if err != nil {
			return Value{}, err
		}
		return DoubleValue(f), nil

	case format.TypeString:
		s, err := r.ReadString(cfg.utf8Lossy)
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil

	case format.TypeDocument:
		sub, err := decodeDoc(r, cfg, false)
		if err != nil {
			return Value{}, err
		}
		return DocumentValue(sub), nil

	case format.TypeArray:
		sub, err := decodeDoc(r, cfg, false)
		if err != nil {
			return Value{}, err
		}
		arr := make(Array, 0, sub.Len())
		for i, e := range sub.entries {
			if e.key != strconv.Itoa(i) {
				return Value{}, errs.Wrapf(errs.KindMalformedBytes, errs.ErrInvalidArrayKey, "key %q at index %d", e.key, i)
			}
			arr = append(arr, e.val)
		}
		return ArrayValue(arr), nil

	case format.TypeBinary:
		return decodeBinary(r)

	case format.TypeUndefined:
		return UndefinedValue(), nil

	case format.TypeObjectID:
		b, err := r.ReadBytes(12)
		if err != nil {
			return Value{}, err
		}
		var id ObjectID
		copy(id[:], b)
		return ObjectIDValue(id), nil

	case format.TypeBoolean:
		b, err := r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		switch b {
		case 0x00:
			return BooleanValue(false), nil
		case 0x01:
			return BooleanValue(true), nil
		default:
			return Value{}, errs.Newf(errs.KindMalformedBytes, "boolean byte 0x%02X at offset %d", b, r.Pos()-1)
		}

	case format.TypeDateTime:
		ms, err := r.ReadInt64()
		if err != nil {
			return Value{}, err
		}
		return DateTimeValue(DateTime(ms)), nil

	case format.TypeNull:
		return NullValue(), nil

	case format.TypeRegex:
		pattern, err := r.ReadCString(cfg.utf8Lossy)
		if err != nil {
			return Value{}, err
		}
		opts, err := r.ReadCString(cfg.utf8Lossy)
		if err != nil {
			return Value{}, err
		}
		// Options are preserved as read; canonical ordering is applied
		// only on write.
		return RegexValue(Regex{Pattern: pattern, Options: opts}), nil

	case format.TypeDBPointer:
		ref, err := r.ReadString(cfg.utf8Lossy)
		if err != nil {
			return Value{}, err
		}
		b, err := r.ReadBytes(12)
		if err != nil {
			return Value{}, err
		}
		var id ObjectID
		copy(id[:], b)
		return DBPointerValue(DBPointer{Ref: ref, ID: id}), nil

	case format.TypeJavaScript:
		s, err := r.ReadString(cfg.utf8Lossy)
		if err != nil {
			return Value{}, err
		}
		return JavaScriptValue(JavaScript(s)), nil

	case format.TypeSymbol:
		s, err := r.ReadString(cfg.utf8Lossy)
		if err != nil {
			return Value{}, err
		}
		return SymbolValue(Symbol(s)), nil

	case format.TypeCodeWithScope:
		return decodeCodeWithScope(r, cfg)

	case format.TypeInt32:
		i, err := r.ReadInt32()
		if err != nil {
			return Value{}, err
		}
		return Int32Value(i), nil

	case format.TypeTimestamp:
		inc, err := r.ReadUint32()
		if err != nil {
			return Value{}, err
		}
		tv, err := r.ReadUint32()
		if err != nil {
			return Value{}, err
		}
		return TimestampValue(Timestamp{T: tv, I: inc}), nil

	case format.TypeInt64:
		i, err := r.ReadInt64()
		if err != nil {
			return Value{}, err
		}
		return Int64Value(i), nil

	case format.TypeDecimal128:
		l, err := r.ReadUint64()
		if err != nil {
			return Value{}, err
		}
		h, err := r.ReadUint64()
		if err != nil {
			return Value{}, err
		}
		return Decimal128Value(NewDecimal128(h, l)), nil

	case format.TypeMinKey:
		return MinKeyValue(), nil

	case format.TypeMaxKey:
		return MaxKeyValue(), nil

	default:
		return Value{}, errs.Newf(errs.KindMalformedBytes, "unknown element tag 0x%02X", byte(t))
	}
}

func decodeBinary(r *wire.Reader) (Value, error) {
	start := r.Pos()
	length, err := r.ReadInt32()
	if err != nil {
		return Value{}, err
	}
	if length < 0 {
		return Value{}, errs.Wrapf(errs.KindMalformedBytes, errs.ErrMalformedLength, "binary length %d at offset %d", length, start)
	}
	subtype, err := r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	payload, err := r.ReadBytes(int(length))
	if err != nil {
		return Value{}, err
	}

	if format.Subtype(subtype) == format.SubtypeBinaryOld {
		if length < 4 {
			return Value{}, errs.Newf(errs.KindMalformedBytes, "legacy binary length %d at offset %d is too small", length, start)
		}
		inner := int32(le.Uint32(payload[:4]))
		if inner != length-4 {
			return Value{}, errs.Newf(errs.KindMalformedBytes, "legacy binary inner length %d does not match outer length %d", inner, length)
		}
		payload = payload[4:]
	}

	data := make([]byte, len(payload))
	copy(data, payload)

	return BinaryValue(Binary{Subtype: format.Subtype(subtype), Data: data}), nil
}

func decodeCodeWithScope(r *wire.Reader, cfg *decodeConfig) (Value, error) {
	start := r.Pos()
	total, err := r.ReadInt32()
	if err != nil {
		return Value{}, err
	}
	// Minimum: 4-byte total, 5-byte empty code string, 5-byte empty scope.
	if total < 14 {
		return Value{}, errs.Newf(errs.KindMalformedBytes, "code-with-scope length %d at offset %d is too small", total, start)
	}
	code, err := r.ReadString(cfg.utf8Lossy)
	if err != nil {
		return Value{}, err
	}
	scope, err := decodeDoc(r, cfg, false)
	if err != nil {
		return Value{}, err
	}
	if r.Pos()-start != int(total) {
		return Value{}, errs.Newf(errs.KindMalformedBytes, "code-with-scope consumed %d bytes, declared %d", r.Pos()-start, total)
	}

	return CodeWithScopeValue(CodeWithScope{Code: code, Scope: scope}), nil
}
