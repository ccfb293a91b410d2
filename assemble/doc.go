// Package assemble turns ranked chunks into the context passed to the
// generation model.
//
// Each included chunk is prefixed with a citation marker naming its source
// path and character range, plus the page for PDFs. Chunks that largely
// repeat a better-ranked chunk of the same document are dropped, and the
// context is filled greedily up to a character budget without ever cutting
// a chunk short.
package assemble
