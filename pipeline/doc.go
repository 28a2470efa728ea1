/*
Package pipeline implements the low-level chunked streaming API used to feed
large files into a processing engine.

Data moves through the pipeline one chunk at a time. A ChunkedSource reads a
Source in bounded slices, a Sniffer inspects the first few bytes of the stream
to decide whether it is compressed, and the DecodeTransform it commits to
yields decoded chunks until the stream is exhausted. Every stage exposes the
same pull operation:

	Next(ctx context.Context) ([]byte, error)

which returns io.EOF once the stream has ended. Nothing is read from a Source
until a consumer asks for the next chunk, so memory use is bounded by a single
chunk per stage no matter how large the Source is.

The AssemblySink works in the opposite direction. Chunks are written into it
and, when Finish is called, they are joined into a single in-memory Artifact.

None of the stages retry. Read and decode failures are terminal for the
stream that produced them and are reported as *ReadError and *DecodeError
respectively.
*/
package pipeline
