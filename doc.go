/*
Package swiftlystream streams large files, compressed or not, into a
processing engine one chunk at a time.

The Ingester is the main entry point. Give it the Consumer that feeds your
engine and an ordered list of Sources, then call Ingest. Each Source is read
in bounded slices, checked for a gzip header, decompressed when needed and
handed to the Consumer chunk by chunk. Sources are processed strictly one
after another, and once the last one has been drained the Consumer's Done
method is called exactly once.

Sources can be local files, in-memory buffers or objects in OpenStack Object
Storage (see ObjectSource and the auth package). The Ingester exposes a Status
that can be queried during ingestion for the overall progress.

The pipeline subpackage implements the individual stages if the Ingester
doesn't offer the level of control that your application requires. It also
provides the AssemblySink, which collects an outgoing stream back into a
single Artifact that the ArtifactUploader can store in Object Storage.
*/
package swiftlystream
