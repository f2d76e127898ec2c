// Package easycall contains small utilities shared by the registry, dispatch
// and generic packages.
package easycall

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// always assume littleendian
var byteOrder = binary.LittleEndian

// CatchPanicOrError runs f and converts a possible panic into an ordinary error
func CatchPanicOrError(f func() error) error {
	var err error
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			var ok bool
			if err, ok = r.(error); !ok {
				err = fmt.Errorf("%v", r)
			}
		}()
		err = f()
	}()
	return err
}

func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Errorf("assertion failed:: "+format, args...))
	}
}

func AssertNoError(err error) {
	if err != nil {
		panic(err)
	}
}

type integerIntern interface {
	uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64
}

func ReadInteger[T integerIntern](r io.Reader, pval *T) error {
	return binary.Read(r, byteOrder, pval)
}

func WriteInteger[T integerIntern](w io.Writer, val T) error {
	return binary.Write(w, byteOrder, val)
}

// r/w utility functions used by the registration journal

func ReadBytes16(r io.Reader) ([]byte, error) {
	var length uint16
	err := ReadInteger(r, &length)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	ret := make([]byte, length)
	_, err = r.Read(ret)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func WriteBytes16(w io.Writer, data []byte) error {
	if len(data) > math.MaxUint16 {
		panic(fmt.Sprintf("WriteBytes16: too long data (%v)", len(data)))
	}
	err := WriteInteger(w, uint16(len(data)))
	if err != nil {
		return err
	}
	if len(data) != 0 {
		_, err = w.Write(data)
	}
	return err
}

// Uint16ToBytes is a shortcut for fixed-size journal keys
func Uint16ToBytes(v uint16) []byte {
	var buf bytes.Buffer
	if err := WriteInteger(&buf, v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Uint16FromBytes is the inverse of Uint16ToBytes
func Uint16FromBytes(data []byte) (uint16, error) {
	var ret uint16
	if err := ReadInteger(bytes.NewReader(data), &ret); err != nil {
		return 0, err
	}
	return ret, nil
}
