package protocol_test

import (
	"math"
	"unicode/utf8"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/luma/cmdmessenger/protocol"
)

var _ = Describe("Values", func() {
	var (
		uno *protocol.Codec
		due *protocol.Codec
	)

	BeforeEach(func() {
		uno = makeCodec(protocol.Boards["uno"])
		due = makeCodec(protocol.Boards["due"])
	})

	roundTrip := func(codec *protocol.Codec, f protocol.Format, v interface{}) interface{} {
		esc := codec.Escaper()

		data, err := codec.EncodeValue(f, v)
		Expect(err).To(Succeed())

		decoded, err := codec.DecodeValue(f, esc.Unescape(esc.Escape(data)))
		Expect(err).To(Succeed())
		return decoded
	}

	DescribeTable("round trips on an Uno",
		func(f protocol.Format, v interface{}, expected interface{}) {
			Expect(roundTrip(uno, f, v)).To(Equal(expected))
		},
		Entry("char", protocol.FormatChar, "A", "A"),
		Entry("char from a byte", protocol.FormatChar, byte('z'), "z"),
		Entry("byte", protocol.FormatByte, 200, uint8(200)),
		Entry("byte that is a separator", protocol.FormatByte, uint8(','), uint8(',')),
		Entry("int", protocol.FormatInt, -1234, int64(-1234)),
		Entry("int holding a separator", protocol.FormatInt, 59, int64(59)),
		Entry("unsigned int", protocol.FormatUnsignedInt, uint16(65000), uint64(65000)),
		Entry("long", protocol.FormatLong, int32(-100000), int64(-100000)),
		Entry("unsigned long", protocol.FormatUnsignedLong, uint32(4000000000), uint64(4000000000)),
		Entry("float", protocol.FormatFloat, 1.5, 1.5),
		Entry("double on a 4 byte board", protocol.FormatDouble, float32(-0.25), -0.25),
		Entry("string", protocol.FormatString, "a,b;c/d", "a,b;c/d"),
		Entry("string from bytes", protocol.FormatString, []byte("Bob"), "Bob"),
		Entry("true", protocol.FormatBool, true, true),
		Entry("false", protocol.FormatBool, false, false),
		Entry("bool from 1", protocol.FormatBool, 1, true),
		Entry("guessed int", protocol.FormatGuess, 42, int64(42)),
		Entry("guessed negative int", protocol.FormatGuess, int64(-7), int64(-7)),
		Entry("guessed float", protocol.FormatGuess, 2.5, 2.5),
		Entry("guessed bool", protocol.FormatGuess, true, int64(1)),
		Entry("guessed text", protocol.FormatGuess, "hello", "hello"),
	)

	It("keeps floats within float32 precision on 4 byte boards", func() {
		Expect(roundTrip(uno, protocol.FormatFloat, 0.1)).To(BeNumerically("~", 0.1, 1e-7))
	})

	It("keeps doubles exact on 8 byte boards", func() {
		Expect(roundTrip(due, protocol.FormatDouble, 0.1)).To(Equal(0.1))
		Expect(roundTrip(due, protocol.FormatInt, -100000)).To(Equal(int64(-100000)))
	})

	It("keeps guessed floats within the text precision", func() {
		Expect(roundTrip(uno, protocol.FormatGuess, math.Pi)).To(BeNumerically("~", math.Pi, 1e-9))
	})

	Describe("range checks", func() {
		DescribeTable("accepts values at the bounds",
			func(f protocol.Format, v interface{}) {
				_, err := uno.EncodeValue(f, v)
				Expect(err).To(Succeed())
			},
			Entry("byte min", protocol.FormatByte, 0),
			Entry("byte max", protocol.FormatByte, 255),
			Entry("int min", protocol.FormatInt, -32768),
			Entry("int max", protocol.FormatInt, 32767),
			Entry("unsigned int min", protocol.FormatUnsignedInt, 0),
			Entry("unsigned int max", protocol.FormatUnsignedInt, 65535),
			Entry("long min", protocol.FormatLong, int64(math.MinInt32)),
			Entry("long max", protocol.FormatLong, int64(math.MaxInt32)),
			Entry("unsigned long max", protocol.FormatUnsignedLong, uint64(math.MaxUint32)),
			Entry("float max", protocol.FormatFloat, 3.4028235e+38),
			Entry("float min", protocol.FormatFloat, -3.4028235e+38),
		)

		DescribeTable("rejects values one past the bounds",
			func(f protocol.Format, v interface{}) {
				_, err := uno.EncodeValue(f, v)
				Expect(err).To(MatchError(protocol.ErrValueOutOfRange))
			},
			Entry("byte below", protocol.FormatByte, -1),
			Entry("byte above", protocol.FormatByte, 256),
			Entry("int below", protocol.FormatInt, -32769),
			Entry("int above", protocol.FormatInt, 32768),
			Entry("unsigned int below", protocol.FormatUnsignedInt, -1),
			Entry("unsigned int above", protocol.FormatUnsignedInt, 65536),
			Entry("long below", protocol.FormatLong, int64(math.MinInt32)-1),
			Entry("long above", protocol.FormatLong, int64(math.MaxInt32)+1),
			Entry("unsigned long above", protocol.FormatUnsignedLong, uint64(math.MaxUint32)+1),
			Entry("float above", protocol.FormatFloat, 3.5e+38),
			Entry("float below", protocol.FormatFloat, -3.5e+38),
		)

		wide := protocol.Board{IntBytes: 8, LongBytes: 8, FloatBytes: 4, DoubleBytes: 8}

		DescribeTable("accepts values at the bounds of wider boards",
			func(board protocol.Board, f protocol.Format, v interface{}) {
				_, err := makeCodec(board).EncodeValue(f, v)
				Expect(err).To(Succeed())
			},
			Entry("due int min", protocol.Boards["due"], protocol.FormatInt, int64(math.MinInt32)),
			Entry("due int max", protocol.Boards["due"], protocol.FormatInt, int64(math.MaxInt32)),
			Entry("due unsigned int max", protocol.Boards["due"], protocol.FormatUnsignedInt, uint64(math.MaxUint32)),
			Entry("due double max", protocol.Boards["due"], protocol.FormatDouble, 1e308),
			Entry("due double min", protocol.Boards["due"], protocol.FormatDouble, -1e308),
			Entry("8 byte int min", wide, protocol.FormatInt, int64(math.MinInt64)),
			Entry("8 byte int max", wide, protocol.FormatInt, int64(math.MaxInt64)),
			Entry("8 byte long min", wide, protocol.FormatLong, int64(math.MinInt64)),
			Entry("8 byte long max", wide, protocol.FormatLong, int64(math.MaxInt64)),
			Entry("8 byte unsigned long max", wide, protocol.FormatUnsignedLong, uint64(math.MaxUint64)),
			Entry("unsigned long min", protocol.DefaultBoard, protocol.FormatUnsignedLong, 0),
		)

		DescribeTable("rejects values one past the bounds of wider boards",
			func(board protocol.Board, f protocol.Format, v interface{}) {
				_, err := makeCodec(board).EncodeValue(f, v)
				Expect(err).To(MatchError(protocol.ErrValueOutOfRange))
			},
			Entry("due int below", protocol.Boards["due"], protocol.FormatInt, int64(math.MinInt32)-1),
			Entry("due int above", protocol.Boards["due"], protocol.FormatInt, int64(math.MaxInt32)+1),
			Entry("due unsigned int above", protocol.Boards["due"], protocol.FormatUnsignedInt, uint64(math.MaxUint32)+1),
			Entry("due double above", protocol.Boards["due"], protocol.FormatDouble, 1.5e308),
			Entry("due double below", protocol.Boards["due"], protocol.FormatDouble, -1.5e308),
			Entry("8 byte int above", wide, protocol.FormatInt, uint64(math.MaxInt64)+1),
			Entry("8 byte long above", wide, protocol.FormatLong, uint64(math.MaxInt64)+1),
			Entry("8 byte unsigned long below", wide, protocol.FormatUnsignedLong, -1),
			Entry("8 byte unsigned int below", wide, protocol.FormatUnsignedInt, int64(math.MinInt64)),
			Entry("unsigned long below", protocol.DefaultBoard, protocol.FormatUnsignedLong, -1),
		)

		It("round trips the extremes of 8 byte types", func() {
			codec := makeCodec(wide)

			Expect(roundTrip(codec, protocol.FormatLong, int64(math.MinInt64))).To(Equal(int64(math.MinInt64)))
			Expect(roundTrip(codec, protocol.FormatInt, int64(math.MaxInt64))).To(Equal(int64(math.MaxInt64)))
			Expect(roundTrip(codec, protocol.FormatUnsignedLong, uint64(math.MaxUint64))).
				To(Equal(uint64(math.MaxUint64)))
			Expect(roundTrip(due, protocol.FormatDouble, 1e308)).To(Equal(1e308))
			Expect(roundTrip(due, protocol.FormatDouble, -1e308)).To(Equal(-1e308))
		})

		It("uses the board's widths", func() {
			_, err := due.EncodeValue(protocol.FormatInt, 32768)
			Expect(err).To(Succeed())

			_, err = due.EncodeValue(protocol.FormatDouble, 1e300)
			Expect(err).To(Succeed())

			_, err = uno.EncodeValue(protocol.FormatDouble, 1e300)
			Expect(err).To(MatchError(protocol.ErrValueOutOfRange))
		})

		It("handles unsigned Go values beyond int64", func() {
			_, err := due.EncodeValue(protocol.FormatLong, uint64(math.MaxUint64))
			Expect(err).To(MatchError(protocol.ErrValueOutOfRange))
		})
	})

	Describe("type checks", func() {
		It("does not coerce floats into integers", func() {
			_, err := uno.EncodeValue(protocol.FormatInt, 1.5)
			Expect(err).To(MatchError(protocol.ErrInvalidValue))

			_, err = uno.EncodeValue(protocol.FormatByte, "7")
			Expect(err).To(MatchError(protocol.ErrInvalidValue))
		})

		It("accepts integers for floats", func() {
			Expect(roundTrip(uno, protocol.FormatFloat, 3)).To(Equal(3.0))
		})

		It("only accepts single, non reserved chars", func() {
			_, err := uno.EncodeValue(protocol.FormatChar, "ab")
			Expect(err).To(MatchError(protocol.ErrInvalidValue))

			_, err = uno.EncodeValue(protocol.FormatChar, '€')
			Expect(err).To(MatchError(protocol.ErrInvalidValue))

			_, err = uno.EncodeValue(protocol.FormatChar, "€")
			Expect(err).To(MatchError(protocol.ErrInvalidValue))

			_, err = uno.EncodeValue(protocol.FormatChar, "")
			Expect(err).To(MatchError(protocol.ErrInvalidValue))

			_, err = uno.EncodeValue(protocol.FormatChar, ",")
			Expect(err).To(MatchError(protocol.ErrValueOutOfRange))
		})

		It("only accepts booleans or 0/1 for bools", func() {
			_, err := uno.EncodeValue(protocol.FormatBool, 2)
			Expect(err).To(MatchError(protocol.ErrInvalidValue))

			_, err = uno.EncodeValue(protocol.FormatBool, "true")
			Expect(err).To(MatchError(protocol.ErrInvalidValue))
		})

		It("rejects non text values for strings", func() {
			_, err := uno.EncodeValue(protocol.FormatString, 12)
			Expect(err).To(MatchError(protocol.ErrInvalidValue))
		})

		It("rejects the repeat marker as a value format", func() {
			_, err := uno.EncodeValue(protocol.FormatRepeat, 1)
			Expect(err).To(MatchError(protocol.ErrInvalidFormatSpec))
		})
	})

	Describe("DecodeValue()", func() {
		It("sign extends narrow ints", func() {
			Expect(uno.DecodeValue(protocol.FormatInt, []byte{0xff, 0xff})).To(Equal(int64(-1)))
			Expect(uno.DecodeValue(protocol.FormatUnsignedInt, []byte{0xff, 0xff})).To(Equal(uint64(65535)))
		})

		It("rejects fields of the wrong width", func() {
			_, err := uno.DecodeValue(protocol.FormatInt, []byte{0x05})
			Expect(err).To(MatchError(protocol.ErrMalformedField))

			_, err = uno.DecodeValue(protocol.FormatBool, []byte{})
			Expect(err).To(MatchError(protocol.ErrMalformedField))
		})

		It("reads chars as Latin-1", func() {
			decoded, err := uno.DecodeValue(protocol.FormatChar, []byte{0xe9})
			Expect(err).To(Succeed())
			Expect(decoded).To(Equal("é"))
			Expect(utf8.ValidString(decoded.(string))).To(BeTrue())

			Expect(uno.DecodeValue(protocol.FormatChar, []byte{0xff})).To(Equal("ÿ"))
			Expect(uno.DecodeValue(protocol.FormatChar, []byte{'A'})).To(Equal("A"))
		})

		It("round trips Latin-1 chars", func() {
			Expect(roundTrip(uno, protocol.FormatChar, 'é')).To(Equal("é"))
			Expect(roundTrip(uno, protocol.FormatChar, "é")).To(Equal("é"))
			Expect(uno.EncodeValue(protocol.FormatChar, "é")).To(Equal([]byte{0xe9}))
		})

		It("trims NUL and whitespace from strings", func() {
			Expect(uno.DecodeValue(protocol.FormatString, []byte(" Bob\r\n\x00"))).To(Equal("Bob"))
		})

		It("guesses ints, floats and text", func() {
			Expect(uno.DecodeValue(protocol.FormatGuess, []byte("12"))).To(Equal(int64(12)))
			Expect(uno.DecodeValue(protocol.FormatGuess, []byte("1.5"))).To(Equal(1.5))
			Expect(uno.DecodeValue(protocol.FormatGuess, []byte("2.5000000000e+00"))).To(Equal(2.5))
			Expect(uno.DecodeValue(protocol.FormatGuess, []byte("1e5"))).To(Equal("1e5"))
			Expect(uno.DecodeValue(protocol.FormatGuess, []byte("Command without callback."))).
				To(Equal("Command without callback."))
		})
	})

	Describe("ParseValue()", func() {
		It("converts text to the value a format expects", func() {
			Expect(protocol.ParseValue(protocol.FormatInt, "-3")).To(Equal(int64(-3)))
			Expect(protocol.ParseValue(protocol.FormatUnsignedLong, "7")).To(Equal(uint64(7)))
			Expect(protocol.ParseValue(protocol.FormatDouble, "0.5")).To(Equal(0.5))
			Expect(protocol.ParseValue(protocol.FormatBool, "true")).To(Equal(true))
			Expect(protocol.ParseValue(protocol.FormatString, "Bob")).To(Equal("Bob"))
		})

		It("fails on malformed text", func() {
			_, err := protocol.ParseValue(protocol.FormatByte, "x")
			Expect(err).To(MatchError(protocol.ErrInvalidValue))

			_, err = protocol.ParseValue(protocol.FormatByte, "-1")
			Expect(err).To(MatchError(protocol.ErrInvalidValue))
		})

		It("fails on text that overflows 64 bits", func() {
			_, err := protocol.ParseValue(protocol.FormatInt, "99999999999999999999")
			Expect(err).To(MatchError(protocol.ErrValueOutOfRange))
		})
	})
})
