// Package utils provides loose type conversion helpers shared by the value,
// metadata and persistence packages. Database drivers and JSON decoding hand back
// numbers as int64, float64, json.Number or raw bytes depending on the source;
// these helpers fold them into a small set of comparable Go types.
package utils
