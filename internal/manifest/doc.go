// Package manifest defines the versioned descriptor that tells the launcher
// which artifacts the downstream application needs and how to start it.
//
// # Wire Format
//
// Descriptors are XML documents with a single Application root element:
//
//	<Application ts="1700000000000" uri="https://cdn.example.org/latest/"
//	             main="exec:bin/app" version="1.4.0" cacheDir="bin">
//	  <file file="bin/app" checksum="2134985732" size="1048576"/>
//	  <file file="lib/data.pak" checksum="99120811" size="2048"
//	        digest="sha256:..."/>
//	</Application>
//
// The ts attribute is the only version marker: a descriptor replaces another
// only when its ts is strictly greater. Artifact order is preserved through
// a round trip so listings and downloads stay deterministic.
//
// # Immutability
//
// Nothing in this package mutates a Descriptor after Parse returns it.
// Callers that need a modified copy use Clone and replace the old value
// wholesale.
package manifest
