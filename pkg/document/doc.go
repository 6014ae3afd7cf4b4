// Package document is the persistence boundary of the engine: the structured
// form of flows, the Encode/Decode pair that maps it to and from graphs, and
// codecs for JSON, YAML and compressed MessagePack files.
package document
