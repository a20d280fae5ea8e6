// Package conversation renders provider conversations as the markdown body
// stored on documents: a heading naming the conversation, its creation
// time, then one section per message with a non-empty body.
package conversation
