// Package html converts HTML message bodies into markdown.
// It walks the tree produced by golang.org/x/net/html, dropping scripts,
// styles and other non-content elements, and never fails: input that
// cannot be parsed is returned unchanged.
package html
