// Package dpt implements KNX datapoint types (DPTs).
//
// A datapoint type describes how an application value is carried in the
// payload of a group telegram. Small types (up to 6 bits) travel inside the
// APCI byte as a Bit payload; everything else travels as an Array payload of
// a fixed number of bytes.
//
// Transcoders are looked up from a static registry by number ("9.001"),
// main number ("9") or value type name ("temperature"):
//
//	t, ok := dpt.Lookup("temperature")
//	p, err := t.ToKNX(21.5)
//	v, err := t.FromKNX(p)
package dpt
