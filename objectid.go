package bsonx

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/umberlabs/bsonx/endian"
	"github.com/umberlabs/bsonx/errs"
)

// ObjectID is a 12-byte unique identifier: a 4-byte big-endian Unix
// timestamp in seconds, a 5-byte process-unique value, and a 3-byte
// big-endian counter.
type ObjectID [12]byte

// NilObjectID is the all-zero ObjectID.
var NilObjectID ObjectID

var be = endian.GetBigEndianEngine()

var (
	processUniqueOnce sync.Once
	processUnique     [5]byte
	objectIDCounter   atomic.Uint32
)

func initProcessUnique() {
	var seed [9]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// crypto/rand.Read does not fail on supported platforms.
		panic("bsonx: reading random bytes for ObjectID generation: " + err.Error())
	}
	copy(processUnique[:], seed[:5])
	objectIDCounter.Store(be.Uint32(seed[5:]) & 0xFFFFFF)
}

// NewObjectID generates an ObjectID from the current clock time, the
// process-unique value, and the next counter value. The counter wraps
// modulo 2^24 and is safe for concurrent use.
func NewObjectID() ObjectID {
	return newObjectIDFromTime(timeSource.Now())
}

func newObjectIDFromTime(t time.Time) ObjectID {
	processUniqueOnce.Do(initProcessUnique)

	var id ObjectID
	be.PutUint32(id[0:4], uint32(t.Unix()))
	copy(id[4:9], processUnique[:])

	count := objectIDCounter.Add(1) & 0xFFFFFF
	id[9] = byte(count >> 16)
	id[10] = byte(count >> 8)
	id[11] = byte(count)

	return id
}

// ObjectIDFromTimestamp creates an ObjectID whose timestamp field is
// set from t and whose remaining bytes are zero. Useful as a range
// bound when comparing identifiers by generation time.
func ObjectIDFromTimestamp(t time.Time) ObjectID {
	var id ObjectID
	be.PutUint32(id[0:4], uint32(t.Unix()))

	return id
}

// ObjectIDFromHex parses a 24-character hexadecimal string.
func ObjectIDFromHex(s string) (ObjectID, error) {
	if len(s) != 24 {
		return NilObjectID, errs.Newf(errs.KindInvalidLength, "ObjectID hex string has length %d, want 24", len(s))
	}

	var id ObjectID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return NilObjectID, errs.Wrap(errs.KindInvalidLength, err, "decoding ObjectID hex string")
	}

	return id, nil
}

// Hex returns the 24-character lowercase hexadecimal form.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Timestamp returns the generation time embedded in the identifier,
// with second precision.
func (id ObjectID) Timestamp() time.Time {
	return time.Unix(int64(be.Uint32(id[0:4])), 0).UTC()
}

// IsZero reports whether the identifier is all zero bytes.
func (id ObjectID) IsZero() bool {
	return id == NilObjectID
}

func (id ObjectID) String() string {
	return `ObjectID("` + id.Hex() + `")`
}

// MarshalText implements encoding.TextMarshaler as the hex form.
func (id ObjectID) MarshalText() ([]byte, error) {
	b := make([]byte, 24)
	hex.Encode(b, id[:])

	return b, nil
}

// UnmarshalText implements encoding.TextUnmarshaler from the hex form.
func (id *ObjectID) UnmarshalText(text []byte) error {
	parsed, err := ObjectIDFromHex(string(text))
	if err != nil {
		return err
	}
	*id = parsed

	return nil
}
