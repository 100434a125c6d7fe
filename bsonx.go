// Package bsonx implements a binary, length-prefixed, typed-element
// document interchange format: encoding, decoding, and zero-copy
// inspection.
//
// The package exposes two complementary views of the same bytes:
//
//   - RawDocument, a zero-copy view that parses lazily and walks a
//     document without allocating for the container, and
//   - Document, a materialized insertion-ordered map produced by fully
//     decoding a frame.
//
// Around the codec sits a reflection-based mapping between arbitrary Go
// types and both views, and an extended JSON surface with canonical and
// relaxed encodings for interoperability.
//
// # Basic Usage
//
// Encoding and decoding Go values:
//
//	type Event struct {
//	    ID   bsonx.ObjectID `bson:"_id"`
//	    Name string         `bson:"name"`
//	    At   bsonx.DateTime `bson:"at,omitempty"`
//	}
//
//	data, _ := bsonx.Marshal(Event{ID: bsonx.NewObjectID(), Name: "boot"})
//
//	var ev Event
//	_ = bsonx.Unmarshal(data, &ev)
//
// Walking bytes without decoding:
//
//	raw, _ := bsonx.NewRawDocument(data)
//	name, found, _ := raw.LookupString("name")
//
//	it := raw.Iter()
//	for it.Next() {
//	    fmt.Println(it.Key(), it.Value().Type)
//	}
//
// Building documents directly:
//
//	doc := bsonx.NewDocument().
//	    Set("i", bsonx.Int32Value(1)).
//	    Set("hi", bsonx.StringValue("y'all"))
//	data, _ = doc.MarshalBinary()
//
// Extended JSON:
//
//	canonical, _ := doc.MarshalCanonicalExtJSON()
//	back, _ := bsonx.ParseExtJSONDocument(canonical)
//
// # Wire Format
//
// A document frame is an int32 total length (including itself and the
// trailing NUL), a sequence of tagged elements, and a 0x00 terminator.
// All multi-byte integers are little-endian; the object identifier's
// internal timestamp and counter are the only big-endian fields. Frames
// above 16 MiB are rejected in both directions.
//
// # Concurrency
//
// The library is synchronous and holds no locks. Values, documents,
// and raw views have no interior mutability and may be shared across
// goroutines for reading. The only process-wide state is the ObjectID
// counter (atomic) and the swappable clock source.
package bsonx
