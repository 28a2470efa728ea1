package swiftlystream_test

import (
	"time"

	"github.com/ibmjstart/swiftlystream"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Status", func() {
	var (
		s                      *swiftlystream.Status
		out                    chan string
		totalFiles, totalBytes uint
	)
	BeforeEach(func() {
		out = make(chan string)
		totalFiles = 3
		totalBytes = 3072
		s = swiftlystream.NewStatus(totalFiles, totalBytes, out)
	})
	Context("Before Print() is called", func() {
		It("Should not write a string to the output channel", func() {
			Consistently(out).
				ShouldNot(Receive(BeAssignableToTypeOf("string")))
		})
	})
	Context("When Print() is called before Start()", func() {
		It("Writes a string to the output channel", func() {
			go func() {
				s.Print()
			}()
			Eventually(out).
				Should(Receive(Equal("Ingestion not started yet")))
		})
	})
	Context("When Print() is called after Start()", func() {
		It("Writes a string to the output channel for each call to Print()",
			func() {

				s.Start()
				const prints = 5
				go func() {
					for i := 0; i < prints; i++ {
						s.Print()
					}
				}()
				seen := 0
				abort := time.NewTicker(time.Second)
				defer abort.Stop()
				for i := 0; i < prints; i++ {
					select {
					case <-out:
						seen++
					case <-abort.C:
						Fail("Test took too long")
					}
				}
				Expect(seen).Should(Equal(prints))
			})
	})
	Context("When bytes are read", func() {
		It("Should change the PercentComplete()", func() {
			s.Start()
			initial := s.PercentComplete()
			s.Read(1024)
			Expect(initial).ShouldNot(Equal(s.PercentComplete()))
			Expect(s.PercentComplete()).To(BeNumerically("~", 100.0/3, 0.01))
			Expect(s.BytesRead()).To(Equal(uint(1024)))
			Expect(s.TotalBytes()).To(Equal(totalBytes))
		})
	})
	Context("When a file completes", func() {
		It("Counts it", func() {
			s.Start()
			s.FileComplete()
			s.FileComplete()
			Expect(s.FilesIngested()).To(Equal(uint(2)))
			Expect(s.TotalFiles()).To(Equal(totalFiles))
		})
	})
	Context("When Print() is called after Stop()", func() {
		It("Writes the final summary to the output channel", func() {
			s.Start()
			s.Read(totalBytes)
			time.Sleep(10 * time.Millisecond)
			s.Stop()
			go func() {
				s.Print()
			}()
			Eventually(out).
				Should(Receive(HavePrefix("Ingested 0/3 files in")))
		})
		It("No longer changes", func() {
			s.Start()
			s.Read(100)
			s.Stop()
			s.Read(100)
			s.FileComplete()
			Expect(s.BytesRead()).To(Equal(uint(100)))
			Expect(s.FilesIngested()).To(Equal(uint(0)))
			Expect(s.Rate()).To(BeNumerically(">", 0))
		})
	})
})
