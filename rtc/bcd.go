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

package rtc

// BCDToBin decodes a packed two digit BCD byte
func BCDToBin(v uint8) uint8 {
	return (v & 0x0f) + (v>>4)*10
}

// BinToBCD encodes v (0-99) as packed BCD
func BinToBCD(v uint8) uint8 {
	return (v/10)<<4 | v%10
}
