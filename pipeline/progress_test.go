package pipeline_test

import (
	. "github.com/ibmjstart/swiftlystream/pipeline"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("FormatBytes", func() {
	It("Formats byte counts the way they are displayed", func() {
		Expect(FormatBytes(0)).To(Equal("0 Bytes"))
		Expect(FormatBytes(500)).To(Equal("500 Bytes"))
		Expect(FormatBytes(1023)).To(Equal("1023 Bytes"))
		Expect(FormatBytes(1024)).To(Equal("1.00 KB"))
		Expect(FormatBytes(2048)).To(Equal("2.00 KB"))
		Expect(FormatBytes(1536)).To(Equal("1.50 KB"))
		Expect(FormatBytes(5242880)).To(Equal("5.00 MB"))
		Expect(FormatBytes(2147483648)).To(Equal("2.00 GB"))
	})
})

var _ = Describe("ProgressTracker", func() {
	var (
		events  []Progress
		tracker *ProgressTracker
	)

	BeforeEach(func() {
		events = nil
		tracker = NewProgressTracker("sample", 1000, func(p Progress) {
			events = append(events, p)
		})
	})

	Context("When started", func() {
		It("Reports zero percent", func() {
			tracker.Start()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Percent).To(Equal(0))
			Expect(events[0].Message).To(Equal("> processed 0 Bytes / 1000 Bytes"))
		})
	})

	Context("When bytes are added one at a time", func() {
		It("Reports every even percentage exactly once", func() {
			tracker.Start()
			for i := 0; i < 1000; i++ {
				tracker.Add(1)
			}
			Expect(events).To(HaveLen(51))
			seen := map[int]bool{}
			for i, event := range events {
				Expect(event.Percent % 2).To(Equal(0))
				Expect(seen[event.Percent]).To(BeFalse())
				seen[event.Percent] = true
				if i > 0 {
					Expect(event.Percent).To(BeNumerically(">", events[i-1].Percent))
				}
			}
			Expect(events[50].Percent).To(Equal(100))
		})
	})

	Context("When a large read skips percentages", func() {
		It("Only reports the percentage it lands on", func() {
			Expect(tracker.Add(500)).To(BeTrue())
			Expect(tracker.Add(10)).To(BeFalse())
			Expect(tracker.Add(4)).To(BeFalse())
			Expect(tracker.Add(6)).To(BeTrue())
			Expect(events).To(HaveLen(2))
			Expect(events[0].Percent).To(Equal(50))
			Expect(events[1].Percent).To(Equal(52))
		})
	})

	Context("When more bytes arrive than expected", func() {
		It("Clamps at the total", func() {
			tracker.Add(2000)
			Expect(tracker.Loaded()).To(Equal(uint(1000)))
			Expect(tracker.Percent()).To(Equal(100))
			Expect(tracker.Add(1)).To(BeFalse())
		})
	})

	Context("When reset for another source", func() {
		It("Starts counting again", func() {
			tracker.Add(1000)
			tracker.Reset("other", 4096)
			Expect(tracker.Loaded()).To(Equal(uint(0)))
			Expect(tracker.Add(2048)).To(BeTrue())
			last := events[len(events)-1]
			Expect(last.Name).To(Equal("other"))
			Expect(last.Percent).To(Equal(50))
			Expect(last.Message).To(Equal("> processed 2.00 KB / 4.00 KB"))
		})
	})

	Context("When the source is empty", func() {
		It("Is complete", func() {
			tracker.Reset("empty", 0)
			Expect(tracker.Percent()).To(Equal(100))
		})
		It("Reports one hundred percent when started and nothing after", func() {
			tracker.Reset("empty", 0)
			tracker.Start()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Percent).To(Equal(100))
			Expect(events[0].Message).To(Equal("> processed 0 Bytes / 0 Bytes"))
			Expect(tracker.Add(0)).To(BeFalse())
			Expect(events).To(HaveLen(1))
		})
	})
})
