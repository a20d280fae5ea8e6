// Package normalisers turns provider content into the markdown stored on
// documents. The html package converts rich-text bodies and the
// conversation package renders whole threads.
package normalisers
