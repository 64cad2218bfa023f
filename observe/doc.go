// Package observe provides logging, metrics and tracing for query and
// mutation execution.
//
// It performs no I/O beyond exporter setup. The query client records fetches,
// deduplicated and superseded requests, mutations, invalidations and
// evictions through the interfaces defined here; NopLogger, NopMetrics and
// NopTracer are used when nothing is configured.
package observe
