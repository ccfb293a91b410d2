// Package chunker splits extracted document text into overlapping passages
// sized for embedding models and prompt budgets.
//
// Offsets are measured in characters (runes). Consecutive chunks of one
// document always share exactly Overlap characters: each chunk after the
// first starts Overlap characters before the previous chunk's end. When
// semantic boundaries are enabled a chunk may end early at a paragraph,
// sentence, line or word break found in the lookahead window, so the step
// between chunk starts can be shorter than MaxChunkSize-Overlap. Without a
// boundary the window is a plain fixed-size slide.
package chunker
