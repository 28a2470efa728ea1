package pipeline_test

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/ibmjstart/swiftlystream/pipeline"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type marshaler string

func (m marshaler) MarshalBinary() ([]byte, error) {
	return []byte(m), nil
}

func readArtifact(artifact *Artifact) []byte {
	data := make([]byte, artifact.Size())
	_, err := io.ReadFull(io.NewSectionReader(artifact, 0, int64(artifact.Size())), data)
	Expect(err).ToNot(HaveOccurred())
	return data
}

var _ = Describe("AssemblySink", func() {
	var (
		completed []*Artifact
		sink      *AssemblySink
	)

	BeforeEach(func() {
		completed = nil
		sink = NewAssemblySink(func(artifact *Artifact) {
			completed = append(completed, artifact)
		}, WithMediaType("application/x-test"), WithArtifactName("joined"))
	})

	Context("When chunks are written", func() {
		It("Joins them in order into one artifact", func() {
			for _, chunk := range []string{"alpha ", "beta ", "gamma"} {
				Expect(sink.WriteChunk([]byte(chunk))).To(Succeed())
			}
			Expect(sink.Received()).To(Equal(uint(16)))

			artifact := sink.Finish()
			Expect(artifact).ToNot(BeNil())
			Expect(completed).To(ConsistOf(artifact))
			Expect(string(readArtifact(artifact))).To(Equal("alpha beta gamma"))
			Expect(artifact.Name()).To(Equal("joined"))
			Expect(artifact.MediaType()).To(Equal("application/x-test"))
			Expect(artifact.Size()).To(Equal(uint(16)))
			Expect(sink.Received()).To(Equal(uint(0)))
		})
		It("Copies chunks so that later changes by the writer do not leak in", func() {
			chunk := []byte("original")
			Expect(sink.WriteChunk(chunk)).To(Succeed())
			copy(chunk, "mutated!")
			Expect(string(readArtifact(sink.Finish()))).To(Equal("original"))
		})
		It("Accepts strings, buffers, readers and binary marshalers", func() {
			Expect(sink.WriteChunk("a")).To(Succeed())
			Expect(sink.WriteChunk(bytes.NewBufferString("b"))).To(Succeed())
			Expect(sink.WriteChunk(strings.NewReader("c"))).To(Succeed())
			Expect(sink.WriteChunk(marshaler("d"))).To(Succeed())
			Expect(string(readArtifact(sink.Finish()))).To(Equal("abcd"))
		})
		It("Rejects values that are not binary", func() {
			err := sink.WriteChunk(42)
			Expect(errors.Is(err, ErrNotBinary)).To(BeTrue())
			Expect(sink.Received()).To(Equal(uint(0)))
		})
		It("Works as an io.Writer", func() {
			n, err := io.Copy(sink, strings.NewReader("streamed through io.Copy"))
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(24)))
			Expect(sink.Close()).To(Succeed())
			Expect(completed).To(HaveLen(1))
			Expect(string(readArtifact(completed[0]))).To(Equal("streamed through io.Copy"))
		})
		It("Reports the running byte count", func() {
			var reported []uint
			sink = NewAssemblySink(nil, WithProgress(func(received uint) {
				reported = append(reported, received)
			}))
			Expect(sink.WriteChunk("12345")).To(Succeed())
			Expect(sink.WriteChunk("678")).To(Succeed())
			Expect(reported).To(Equal([]uint{5, 8}))
		})
		It("Reports progress for a chunk that preprocessing empties", func() {
			var reported []uint
			sink = NewAssemblySink(nil, WithPreprocess(func(chunk []byte) ([]byte, error) {
				return bytes.TrimSpace(chunk), nil
			}), WithProgress(func(received uint) {
				reported = append(reported, received)
			}))
			Expect(sink.WriteChunk("abc")).To(Succeed())
			Expect(sink.WriteChunk("   ")).To(Succeed())
			Expect(reported).To(Equal([]uint{3, 3}))
			Expect(string(readArtifact(sink.Finish()))).To(Equal("abc"))
		})
	})

	Context("When finishing with nothing buffered", func() {
		It("Produces no artifact", func() {
			Expect(sink.Finish()).To(BeNil())
			Expect(completed).To(BeEmpty())
		})
		It("Ignores empty chunks", func() {
			Expect(sink.WriteChunk([]byte{})).To(Succeed())
			Expect(sink.Finish()).To(BeNil())
			Expect(completed).To(BeEmpty())
		})
	})

	Context("When the sink is reused", func() {
		It("Starts every artifact from an empty buffer", func() {
			Expect(sink.WriteChunk("first")).To(Succeed())
			first := sink.Finish()
			Expect(sink.WriteChunk("second")).To(Succeed())
			second := sink.Finish()
			Expect(string(readArtifact(first))).To(Equal("first"))
			Expect(string(readArtifact(second))).To(Equal("second"))
		})
	})

	Context("When a preprocess hook is installed", func() {
		It("Buffers what the hook returns", func() {
			sink = NewAssemblySink(nil, WithPreprocess(func(chunk []byte) ([]byte, error) {
				return bytes.ToUpper(chunk), nil
			}))
			Expect(sink.WriteChunk("shout")).To(Succeed())
			Expect(string(readArtifact(sink.Finish()))).To(Equal("SHOUT"))
		})
		It("Leaves the buffer untouched when the hook fails", func() {
			failure := errors.New("refused")
			fail := true
			sink = NewAssemblySink(nil, WithPreprocess(func(chunk []byte) ([]byte, error) {
				if fail {
					return nil, failure
				}
				return chunk, nil
			}))
			err := sink.WriteChunk("retry me")
			var preprocessErr *PreprocessError
			Expect(errors.As(err, &preprocessErr)).To(BeTrue())
			Expect(errors.Is(err, failure)).To(BeTrue())
			Expect(sink.Received()).To(Equal(uint(0)))

			fail = false
			Expect(sink.WriteChunk("retry me")).To(Succeed())
			Expect(string(readArtifact(sink.Finish()))).To(Equal("retry me"))
		})
		It("Drops chunks the hook filters out", func() {
			sink = NewAssemblySink(nil, WithPreprocess(func(chunk []byte) ([]byte, error) {
				if bytes.HasPrefix(chunk, []byte("#")) {
					return nil, nil
				}
				return chunk, nil
			}))
			Expect(sink.WriteChunk("#comment")).To(Succeed())
			Expect(sink.WriteChunk("data")).To(Succeed())
			Expect(string(readArtifact(sink.Finish()))).To(Equal("data"))
		})
	})

	Context("When listeners are registered", func() {
		It("Calls them after the completion callback", func() {
			var order []string
			sink = NewAssemblySink(func(*Artifact) {
				order = append(order, "complete")
			}, WithArtifactListener(func(*Artifact) {
				order = append(order, "listener")
			}))
			Expect(sink.WriteChunk("x")).To(Succeed())
			sink.Finish()
			Expect(order).To(Equal([]string{"complete", "listener"}))
		})
	})

	Context("When the artifact is read back as a source", func() {
		It("Streams through a ChunkedSource", func() {
			Expect(sink.WriteChunk(sample(1000))).To(Succeed())
			artifact := sink.Finish()
			chunks, err := drain(NewChunkedSource(artifact, WithChunkSize(128)))
			Expect(err).ToNot(HaveOccurred())
			Expect(join(chunks)).To(Equal(sample(1000)))
		})
	})
})
