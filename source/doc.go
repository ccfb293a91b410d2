// Package source turns files on disk into core.Documents.
//
// Each supported format is a DocumentSource variant (PDF, Markdown,
// PlainText) with a single ExtractText operation; Open picks the variant
// from the file extension and nothing outside this package branches on
// format. Loader walks a directory, extracts every supported file and
// reports unsupported, unreadable or partially decoded files as
// core.IngestionWarning values instead of failing the load.
package source
