package regfile

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/fractalsync/fsync"
)

var _ = Describe("Local", func() {
	var l *Local

	BeforeEach(func() {
		l = NewLocal("Node.LocalRF", 4)
	})

	It("should resolve when the second side arrives", func() {
		first := l.CheckAll([]Check{
			{Port: 0, Side: 0, ID: 2, Contrib: fsync.PortMask(0b01)},
		})
		Expect(first[0].Admitted).To(BeTrue())
		Expect(first[0].Present).To(BeFalse())
		Expect(l.Pending(2)).To(BeTrue())

		second := l.CheckAll([]Check{
			{Port: 1, Side: 1, ID: 2, Contrib: fsync.PortMask(0b10)},
		})
		Expect(second[0].Admitted).To(BeTrue())
		Expect(second[0].Present).To(BeTrue())
		Expect(second[0].Contrib).To(Equal(fsync.PortMask(0b11)))
		Expect(l.Pending(2)).To(BeFalse())
	})

	It("should bypass a same-tick pair and admit only the lowest port", func() {
		results := l.CheckAll([]Check{
			{Port: 1, Side: 1, ID: 0, Contrib: fsync.PortMask(0b10)},
			{Port: 0, Side: 0, ID: 0, Contrib: fsync.PortMask(0b01)},
		})

		Expect(results[0].Admitted).To(BeFalse())
		Expect(results[0].Ignored).To(BeTrue())
		Expect(results[1].Admitted).To(BeTrue())
		Expect(results[1].Present).To(BeTrue())
		Expect(results[1].Contrib).To(Equal(fsync.PortMask(0b11)))
		Expect(l.Pending(0)).To(BeFalse())
	})

	It("should not count a same-side duplicate twice", func() {
		results := l.CheckAll([]Check{
			{Port: 0, Side: 0, ID: 1, Contrib: fsync.PortMask(0b01)},
			{Port: 2, Side: 0, ID: 1, Contrib: fsync.PortMask(0b100)},
		})

		Expect(results[0].Admitted).To(BeTrue())
		Expect(results[0].Present).To(BeFalse())
		Expect(results[1].Ignored).To(BeTrue())
		Expect(l.Pending(1)).To(BeTrue())
	})

	It("should keep ids independent", func() {
		l.CheckAll([]Check{{Port: 0, Side: 0, ID: 0, Contrib: 0b01}})
		l.CheckAll([]Check{{Port: 0, Side: 0, ID: 1, Contrib: 0b01}})

		results := l.CheckAll([]Check{
			{Port: 1, Side: 1, ID: 0, Contrib: 0b10},
		})
		Expect(results[0].Present).To(BeTrue())
		Expect(l.Pending(1)).To(BeTrue())
	})

	It("should escalate a merged pair into the second stage", func() {
		stage1 := NewLocal("Node.LocalRF1", 4)

		merged := l.CheckAll([]Check{
			{Port: 0, Side: 0, ID: 3, Contrib: 0b0001},
			{Port: 1, Side: 1, ID: 3, Contrib: 0b0010},
		})
		Expect(merged[0].Present).To(BeTrue())
		Expect(merged[0].Contrib).To(Equal(fsync.PortMask(0b0011)))

		esc := stage1.CheckAll([]Check{
			{Port: 0, Side: 0, ID: 3, Contrib: merged[0].Contrib},
		})
		Expect(esc[0].Present).To(BeFalse())
		Expect(stage1.Pending(3)).To(BeTrue())

		other := stage1.CheckAll([]Check{
			{Port: 2, Side: 1, ID: 3, Contrib: 0b1100},
		})
		Expect(other[0].Present).To(BeTrue())
		Expect(other[0].Contrib).To(Equal(fsync.PortMask(0b1111)))
	})

	It("should start a fresh cycle after a barrier resolves", func() {
		l.CheckAll([]Check{{Port: 0, Side: 0, ID: 0, Contrib: 0b01}})
		l.CheckAll([]Check{{Port: 1, Side: 1, ID: 0, Contrib: 0b10}})

		results := l.CheckAll([]Check{
			{Port: 1, Side: 1, ID: 0, Contrib: 0b10},
		})

		Expect(results[0].Present).To(BeFalse())
		Expect(l.Pending(0)).To(BeTrue())
	})

	It("should flag ids outside the configured range", func() {
		results := l.CheckAll([]Check{
			{Port: 0, Side: 0, ID: 4, Contrib: 0b01},
		})

		Expect(results[0].IDErr).To(BeTrue())
		Expect(results[0].Admitted).To(BeFalse())
	})
})
