package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/cmdmessenger/protocol"
)

var _ = Describe("CommandTable", func() {
	var table *protocol.CommandTable

	BeforeEach(func() {
		table = protocol.NewCommandTable()
	})

	It("assigns ids in registration order", func() {
		id, err := table.Register("who_are_you", "")
		Expect(err).To(Succeed())
		Expect(id).To(Equal(0))

		id, err = table.Register("my_name_is", "s")
		Expect(err).To(Succeed())
		Expect(id).To(Equal(1))

		id, err = table.RegisterUnformatted("error")
		Expect(err).To(Succeed())
		Expect(id).To(Equal(2))

		Expect(table.Len()).To(Equal(3))
	})

	It("resolves commands by name and by id", func() {
		_, err := table.Register("my_name_is", "s")
		Expect(err).To(Succeed())

		spec, err := table.ByName("my_name_is")
		Expect(err).To(Succeed())
		Expect(spec.ID).To(Equal(0))
		Expect(spec.HasFormats).To(BeTrue())
		Expect(spec.Formats.String()).To(Equal("s"))

		spec, ok := table.ByID(0)
		Expect(ok).To(BeTrue())
		Expect(spec.Name).To(Equal("my_name_is"))
	})

	It("returns ErrUnknownCommand for unregistered names", func() {
		_, err := table.ByName("who_are_you")
		Expect(err).To(MatchError(protocol.ErrUnknownCommand))
	})

	It("returns the unknown sentinel for unregistered ids", func() {
		spec, ok := table.ByID(7)
		Expect(ok).To(BeFalse())
		Expect(spec).To(Equal(protocol.Unknown))

		_, ok = table.ByID(-1)
		Expect(ok).To(BeFalse())
	})

	It("rejects duplicate names", func() {
		_, err := table.Register("ping", "")
		Expect(err).To(Succeed())

		_, err = table.Register("ping", "i")
		Expect(err).To(MatchError(protocol.ErrDuplicateCommand))
	})

	It("rejects malformed formats", func() {
		_, err := table.Register("multi_pong", "*l")
		Expect(err).To(MatchError(protocol.ErrInvalidFormatSpec))
		Expect(table.Len()).To(Equal(0))
	})

	It("builds a table from definitions", func() {
		format := "l*"
		table, err := protocol.NewCommandTableFrom([]protocol.CommandDef{
			{Name: "multi_ping"},
			{Name: "multi_pong", Format: &format},
		})
		Expect(err).To(Succeed())

		specs := table.Specs()
		Expect(specs).To(HaveLen(2))
		Expect(specs[0].HasFormats).To(BeFalse())
		Expect(specs[1].Formats.String()).To(Equal("l*"))
	})
})
