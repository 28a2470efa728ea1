package pipeline_test

import (
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"

	. "github.com/ibmjstart/swiftlystream/pipeline"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Counter", func() {
	It("Counts and hashes every chunk that passes through", func() {
		data := sample(2500)
		counter := NewCounter(NewChunkedSource(NewBufferSource("sample", data), WithChunkSize(1000)))
		chunks, err := drain(counter)
		Expect(err).ToNot(HaveOccurred())
		Expect(join(chunks)).To(Equal(data))

		count := counter.Count()
		Expect(count.Bytes).To(Equal(uint(2500)))
		Expect(count.Chunks).To(Equal(uint(3)))

		sum := blake3.Sum256(data)
		Expect(counter.Digest()).To(Equal(hex.EncodeToString(sum[:])))
	})
	It("Computes rates from the elapsed time", func() {
		count := Count{Bytes: 2 * 1024 * 1024, Elapsed: 2 * time.Second}
		Expect(count.Rate()).To(BeNumerically("~", 1024*1024, 1))
		Expect(count.RateKiBPS()).To(BeNumerically("~", 1024, 0.01))
		Expect(count.RateMiBPS()).To(BeNumerically("~", 1, 0.01))
	})
})
