/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package hostendian provides the byte order of the machine this code is running on.

Structures exchanged with a process through its memory (timeval, timezone, itimerval,
timex) are laid out in host order, so they are encoded and decoded with Order.
*/
package hostendian

import (
	"bytes"
	"encoding/binary"
	"unsafe"
)

// Order of the bytes
var Order binary.ByteOrder = binary.LittleEndian

// IsBigEndian is a flag determining if value is in Big Endian
var IsBigEndian bool

func init() {
	var i uint16 = 0x0100
	ptr := unsafe.Pointer(&i)
	if *(*byte)(ptr) == 0x01 {
		// we are on the big endian machine
		IsBigEndian = true
		Order = binary.BigEndian
	}
}

// Size returns the encoded size of a fixed size value
func Size(v any) int {
	return binary.Size(v)
}

// Marshal encodes a fixed size value in host order
func Marshal(v any) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, binary.Size(v)))
	if err := binary.Write(buf, Order, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes b into the fixed size value pointed to by v
func Unmarshal(b []byte, v any) error {
	return binary.Read(bytes.NewReader(b), Order, v)
}
