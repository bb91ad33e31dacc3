// Package tabular is a high-throughput reader and writer for delimited and
// fixed-width tabular text files.
//
// Reading is built around a lazy, indexed column store: the file is parsed
// once by a parallel, quote-aware scanner that records the byte offset of
// every field, and cell values are materialized on demand from the
// memory-mapped (or decompressed in-memory) byte region. Writing is a
// chunked, multi-goroutine formatter with configurable quoting and
// compression framing by filename suffix.
//
// The packages compose as follows:
//
//   - pkg/source: byte regions (mmap or in-memory, compression sniffing)
//   - pkg/index: the field-offset indexers, delimited and fixed-width
//   - pkg/column: column types, converters, inference, lazy columns, Table
//   - pkg/reader: the Read / ReadFiles / ReadFixedWidth entry points
//   - pkg/writer: the chunked delimited writer
//   - pkg/config, pkg/locale, pkg/progress: configuration surfaces
//
// The cmd/tabular CLI wraps the library for schema inspection and format
// conversion.
package tabular
