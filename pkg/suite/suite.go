// Package suite wraps the cryptographic primitives consumed by the roadauth
// protocol core: ristretto255 group arithmetic, authenticated symmetric
// encryption and Diffie-Hellman key derivation.
//
// All functions are pure and stateless. Scalars and group elements travel as
// their canonical 32-byte encodings, which keeps protocol messages free of
// library types. Decoding failures are flagged ErrPrimitive and shall be
// treated as unrecoverable configuration errors by callers.
package suite

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/gtank/ristretto255"
)

const (
	// ScalarSize is the byte length of an encoded scalar.
	ScalarSize = 32

	// PointSize is the byte length of an encoded group element.
	PointSize = 32

	// KeySize is the byte length of the symmetric keys consumed and produced
	// by this package.
	KeySize = 32
)

// NewScalar draws a uniformly random scalar and returns its canonical encoding.
func NewScalar() ([]byte, error) {
	wide := make([]byte, 64)
	_, err := rand.Read(wide)
	if nil != err {
		return nil, wrapError(err, "failed reading entropy")
	}
	s := ristretto255.NewScalar().FromUniformBytes(wide)
	return s.Encode(nil), nil
}

// ScalarFromUint64 returns the canonical encoding of the scalar with value v.
// It is mostly useful for fixed protocol test vectors.
func ScalarFromUint64(v uint64) []byte {
	buf := make([]byte, ScalarSize)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// AddScalars returns the canonical encoding of a + b over the scalar field.
func AddScalars(a, b []byte) ([]byte, error) {
	sa, err := decodeScalar(a)
	if nil != err {
		return nil, err
	}
	sb, err := decodeScalar(b)
	if nil != err {
		return nil, err
	}
	return ristretto255.NewScalar().Add(sa, sb).Encode(nil), nil
}

// MulScalars returns the canonical encoding of a * b over the scalar field.
func MulScalars(a, b []byte) ([]byte, error) {
	sa, err := decodeScalar(a)
	if nil != err {
		return nil, err
	}
	sb, err := decodeScalar(b)
	if nil != err {
		return nil, err
	}
	return ristretto255.NewScalar().Multiply(sa, sb).Encode(nil), nil
}

// ScalarBaseMul returns the encoding of s * P, with P the group base point.
func ScalarBaseMul(s []byte) ([]byte, error) {
	sc, err := decodeScalar(s)
	if nil != err {
		return nil, err
	}
	return ristretto255.NewElement().ScalarBaseMult(sc).Encode(nil), nil
}

// ScalarMul returns the encoding of s * Q for group element Q.
func ScalarMul(point, s []byte) ([]byte, error) {
	q, err := decodePoint(point)
	if nil != err {
		return nil, err
	}
	sc, err := decodeScalar(s)
	if nil != err {
		return nil, err
	}
	return ristretto255.NewElement().ScalarMult(sc, q).Encode(nil), nil
}

// PointAdd returns the encoding of P + Q.
func PointAdd(p, q []byte) ([]byte, error) {
	ep, err := decodePoint(p)
	if nil != err {
		return nil, err
	}
	eq, err := decodePoint(q)
	if nil != err {
		return nil, err
	}
	return ristretto255.NewElement().Add(ep, eq).Encode(nil), nil
}

// PointsEqual reports whether p and q encode the same group element.
// The comparison runs in constant time.
func PointsEqual(p, q []byte) (bool, error) {
	ep, err := decodePoint(p)
	if nil != err {
		return false, err
	}
	eq, err := decodePoint(q)
	if nil != err {
		return false, err
	}
	return 1 == ep.Equal(eq), nil
}

// CheckScalar errors if s is not a canonical scalar encoding.
func CheckScalar(s []byte) error {
	_, err := decodeScalar(s)
	return err
}

// CheckPoint errors if p is not a canonical group element encoding.
func CheckPoint(p []byte) error {
	_, err := decodePoint(p)
	return err
}

func decodeScalar(data []byte) (*ristretto255.Scalar, error) {
	s := ristretto255.NewScalar()
	if err := s.Decode(data); nil != err {
		return nil, primitiveError(err, "invalid scalar encoding")
	}
	return s, nil
}

func decodePoint(data []byte) (*ristretto255.Element, error) {
	p := ristretto255.NewElement()
	if err := p.Decode(data); nil != err {
		return nil, primitiveError(err, "invalid group element encoding")
	}
	return p, nil
}
