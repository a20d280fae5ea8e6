// Package postprocessors holds the content processors that run on stored
// documents before enrichment. The chunker package splits document content
// into the overlapping windows that are embedded and searched.
package postprocessors
