package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/cmdmessenger/protocol"
)

var _ = Describe("Formats", func() {
	Describe("ParseFormats()", func() {
		It("parses every supported token", func() {
			formats, err := protocol.ParseFormats("cbiIlLfds?g")
			Expect(err).To(Succeed())
			Expect(formats).To(HaveLen(11))
			Expect(formats.String()).To(Equal("cbiIlLfds?g"))
		})

		It("returns an empty, non-nil list for an empty string", func() {
			formats, err := protocol.ParseFormats("")
			Expect(err).To(Succeed())
			Expect(formats).NotTo(BeNil())
			Expect(formats).To(BeEmpty())
		})

		It("rejects unsupported tokens", func() {
			_, err := protocol.ParseFormats("ix")
			Expect(err).To(MatchError(protocol.ErrInvalidFormatSpec))
		})

		It("rejects a misplaced '*'", func() {
			for _, s := range []string{"*", "*i", "i*i", "i**"} {
				_, err := protocol.ParseFormats(s)
				Expect(err).To(MatchError(protocol.ErrInvalidFormatSpec), s)
			}
		})
	})

	Describe("ExpandFormats()", func() {
		It("repeats the token before '*' for every argument", func() {
			formats, err := protocol.ExpandFormats(protocol.MustParseFormats("i*"), 5)
			Expect(err).To(Succeed())
			Expect(formats.String()).To(Equal("iiiii"))
		})

		It("keeps explicit tokens ahead of the repeated one", func() {
			formats, err := protocol.ExpandFormats(protocol.MustParseFormats("sf*"), 4)
			Expect(err).To(Succeed())
			Expect(formats.String()).To(Equal("sfff"))
		})

		It("fails for '*' alone", func() {
			_, err := protocol.ExpandFormats(protocol.Formats{protocol.FormatRepeat}, 3)
			Expect(err).To(MatchError(protocol.ErrInvalidFormatSpec))
		})

		It("fails when there are fewer arguments than explicit tokens", func() {
			_, err := protocol.ExpandFormats(protocol.MustParseFormats("ii*"), 1)
			Expect(err).To(MatchError(protocol.ErrArgumentCountMismatch))
		})

		It("requires the count to match exactly without '*'", func() {
			_, err := protocol.ExpandFormats(protocol.MustParseFormats("ii"), 3)
			Expect(err).To(MatchError(protocol.ErrArgumentCountMismatch))

			_, err = protocol.ExpandFormats(protocol.MustParseFormats("ii"), 1)
			Expect(err).To(MatchError(protocol.ErrArgumentCountMismatch))
		})
	})

	It("marshals to and from text", func() {
		var formats protocol.Formats
		Expect(formats.UnmarshalText([]byte("l*"))).To(Succeed())

		text, err := formats.MarshalText()
		Expect(err).To(Succeed())
		Expect(string(text)).To(Equal("l*"))
	})
})
