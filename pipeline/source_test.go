package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	. "github.com/ibmjstart/swiftlystream/pipeline"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ChunkedSource", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("DefaultChunkSize", func() {
		It("Never goes below the minimum chunk size", func() {
			Expect(DefaultChunkSize(0)).To(Equal(MinChunkSize))
			Expect(DefaultChunkSize(1024)).To(Equal(MinChunkSize))
			Expect(DefaultChunkSize(1000 * MinChunkSize)).To(Equal(MinChunkSize))
		})
		It("Splits large sources into a thousand chunks", func() {
			Expect(DefaultChunkSize(1000 * 1024 * 1024)).To(Equal(uint(1024 * 1024)))
		})
	})

	Context("When reading a source in fixed slices", func() {
		It("Issues ceil(size/chunkSize) reads and a short final chunk", func() {
			for _, params := range []struct{ Size, ChunkSize int }{
				{Size: 1000, ChunkSize: 300},
				{Size: 1000, ChunkSize: 250},
				{Size: 1000, ChunkSize: 1},
				{Size: 1000, ChunkSize: 1000},
				{Size: 1000, ChunkSize: 4096},
				{Size: 1, ChunkSize: 7},
			} {
				data := sample(params.Size)
				source := NewChunkedSource(NewBufferSource("sample", data), WithChunkSize(uint(params.ChunkSize)))
				chunks, err := drain(source)
				Expect(err).ToNot(HaveOccurred())

				expected := (params.Size + params.ChunkSize - 1) / params.ChunkSize
				Expect(chunks).To(HaveLen(expected), fmt.Sprintf("size %d chunk %d", params.Size, params.ChunkSize))
				Expect(source.Pulls()).To(Equal(uint(expected)))
				for _, chunk := range chunks[:len(chunks)-1] {
					Expect(chunk).To(HaveLen(params.ChunkSize))
				}
				Expect(chunks[len(chunks)-1]).To(HaveLen(params.Size - (expected-1)*params.ChunkSize))
				Expect(join(chunks)).To(Equal(data))
				Expect(source.Offset()).To(Equal(uint(params.Size)))
			}
		})
		It("Keeps returning io.EOF once the source has been read", func() {
			source := NewChunkedSource(NewBufferSource("sample", sample(10)), WithChunkSize(10))
			_, err := source.Next(ctx)
			Expect(err).ToNot(HaveOccurred())
			for i := 0; i < 3; i++ {
				_, err = source.Next(ctx)
				Expect(err).To(Equal(io.EOF))
			}
			Expect(source.Pulls()).To(Equal(uint(1)))
		})
		It("Ends an empty source without reading it", func() {
			source := NewChunkedSource(NewBufferSource("empty", nil))
			_, err := source.Next(ctx)
			Expect(err).To(Equal(io.EOF))
			Expect(source.Pulls()).To(Equal(uint(0)))
		})
		It("Reports every byte read to the read observer", func() {
			var observed uint
			source := NewChunkedSource(NewBufferSource("sample", sample(999)),
				WithChunkSize(100),
				WithReadObserver(func(n uint) { observed += n }),
				WithHeaders(func(context.Context, Source) ([][]byte, error) {
					return [][]byte{[]byte("header")}, nil
				}))
			_, err := drain(source)
			Expect(err).ToNot(HaveOccurred())
			Expect(observed).To(Equal(uint(999)))
		})
	})

	Context("When header generation is configured", func() {
		It("Emits the header blocks in order before the data", func() {
			data := sample(50)
			source := NewChunkedSource(NewBufferSource("sample", data),
				WithChunkSize(20),
				WithHeaders(func(_ context.Context, src Source) ([][]byte, error) {
					return [][]byte{[]byte("first:" + src.Name()), []byte("second")}, nil
				}))
			chunks, err := drain(source)
			Expect(err).ToNot(HaveOccurred())
			Expect(chunks).To(HaveLen(5))
			Expect(string(chunks[0])).To(Equal("first:sample"))
			Expect(string(chunks[1])).To(Equal("second"))
			Expect(join(chunks[2:])).To(Equal(data))
		})
		It("Holds a pull issued before the headers are ready and serves it afterwards", func() {
			release := make(chan struct{})
			source := NewChunkedSource(NewBufferSource("sample", sample(10)),
				WithHeaders(func(context.Context, Source) ([][]byte, error) {
					<-release
					return [][]byte{[]byte("header")}, nil
				}))
			pulled := make(chan []byte, 1)
			go func() {
				defer GinkgoRecover()
				chunk, err := source.Next(ctx)
				Expect(err).ToNot(HaveOccurred())
				pulled <- chunk
			}()
			Consistently(pulled, 100*time.Millisecond).ShouldNot(Receive())
			close(release)
			Eventually(pulled).Should(Receive(Equal([]byte("header"))))
			Expect(source.Pulls()).To(Equal(uint(0)))
		})
		It("Fails the stream when generation fails", func() {
			failure := errors.New("no header for you")
			source := NewChunkedSource(NewBufferSource("sample", sample(10)),
				WithHeaders(func(context.Context, Source) ([][]byte, error) {
					return nil, failure
				}))
			_, err := source.Next(ctx)
			Expect(errors.Is(err, failure)).To(BeTrue())
			_, err = source.Next(ctx)
			Expect(errors.Is(err, failure)).To(BeTrue())
			Expect(source.Pulls()).To(Equal(uint(0)))
		})
	})

	Context("When a pull is already outstanding", func() {
		It("Rejects the second pull", func() {
			blocking := newBlockingSource(100)
			defer close(blocking.release)
			source := NewChunkedSource(blocking, WithChunkSize(10))
			go func() {
				_, _ = source.Next(ctx)
			}()
			Eventually(blocking.entered).Should(Receive())
			_, err := source.Next(ctx)
			Expect(errors.Is(err, ErrConcurrentPull)).To(BeTrue())
		})
	})

	Context("When reading from a bad data source", func() {
		It("Returns a ReadError carrying the failed offset", func() {
			source := NewChunkedSource(failingSource{NewBufferSource("bad", sample(100)), 50}, WithChunkSize(20))
			chunks, err := drain(source)
			Expect(chunks).To(HaveLen(2))
			var readErr *ReadError
			Expect(errors.As(err, &readErr)).To(BeTrue())
			Expect(readErr.Source).To(Equal("bad"))
			Expect(readErr.Offset).To(Equal(uint(40)))

			_, again := source.Next(ctx)
			Expect(again).To(Equal(err))
		})
		It("Treats a short read as an unexpected end of file", func() {
			source := NewChunkedSource(shortSource{NewBufferSource("short", sample(30)), 50}, WithChunkSize(20))
			_, err := drain(source)
			var readErr *ReadError
			Expect(errors.As(err, &readErr)).To(BeTrue())
			Expect(errors.Is(err, io.ErrUnexpectedEOF)).To(BeTrue())
		})
	})

	Context("When the context is cancelled", func() {
		It("Abandons the read in flight and closes the source", func() {
			blocking := newBlockingSource(100)
			defer close(blocking.release)
			source := NewChunkedSource(blocking, WithChunkSize(10))
			cancelCtx, cancel := context.WithCancel(ctx)
			result := make(chan error, 1)
			go func() {
				_, err := source.Next(cancelCtx)
				result <- err
			}()
			Eventually(blocking.entered).Should(Receive())
			cancel()
			Eventually(result).Should(Receive(Equal(context.Canceled)))

			_, err := source.Next(ctx)
			Expect(err).To(Equal(ErrClosed))
		})
	})

	Context("When closed", func() {
		It("Refuses further pulls", func() {
			source := NewChunkedSource(NewBufferSource("sample", sample(100)), WithChunkSize(10))
			_, err := source.Next(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(source.Close()).To(Succeed())
			Expect(source.Close()).To(Succeed())
			_, err = source.Next(ctx)
			Expect(err).To(Equal(ErrClosed))
		})
	})
})
