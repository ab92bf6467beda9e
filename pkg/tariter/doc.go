// Package tariter expands tar streams into members and groups members into
// samples.
//
// [Expander] consumes {"url", "stream"} samples and yields one
// {"fname", "data", "__url__"} sample per regular file in the archive.
// Gzip-compressed archives are detected by their magic bytes.
//
// [Grouper] merges consecutive members that share a base name:
//
//	000123.jpg, 000123.cls  ->  {"__key__": "000123", "jpg": ..., "cls": ...}
//
// Both stages hand per-member and per-sample failures to a
// pipeline.Handler.
package tariter
