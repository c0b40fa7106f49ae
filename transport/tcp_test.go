package transport_test

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/cmdmessenger/protocol"
	"github.com/luma/cmdmessenger/transport"
)

var _ = Describe("transport", func() {
	Describe("TCP", func() {
		var (
			tcp    *transport.TCP
			frames chan *protocol.Frame
		)

		BeforeEach(func() {
			frames = make(chan *protocol.Frame, 8)
			tcp = makeTCPServer(frames)
		})

		AfterEach(func() {
			Expect(tcp.Close()).To(Succeed())
		})

		It("listens on the desired port", func() {
			conn, err := net.Dial("tcp", tcp.Addr())
			Expect(err).To(Succeed())
			conn.Close()
		})

		It("hands complete client frames to the handler", func() {
			conn, err := net.Dial("tcp", tcp.Addr())
			Expect(err).To(Succeed())
			defer conn.Close()

			_, err = conn.Write([]byte("1,Bob;0"))
			Expect(err).To(Succeed())

			var frame *protocol.Frame
			Eventually(frames).Should(Receive(&frame))
			Expect(string(frame.Raw)).To(Equal("1,Bob;"))
			Expect(frame.Fields).To(Equal([][]byte{[]byte("1"), []byte("Bob")}))

			Consistently(frames, 100*time.Millisecond).ShouldNot(Receive())

			_, err = conn.Write([]byte(";"))
			Expect(err).To(Succeed())

			Eventually(frames).Should(Receive(&frame))
			Expect(string(frame.Raw)).To(Equal("0;"))
		})

		It("broadcasts device frames to every client", func() {
			first, err := net.Dial("tcp", tcp.Addr())
			Expect(err).To(Succeed())
			defer first.Close()

			second, err := net.Dial("tcp", tcp.Addr())
			Expect(err).To(Succeed())
			defer second.Close()

			Eventually(tcp.NumConns).Should(Equal(2))

			Expect(tcp.Broadcast([]byte("3,\x05\x00;"))).To(Succeed())

			for _, conn := range []net.Conn{first, second} {
				Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())

				frame, err := bufio.NewReader(conn).ReadBytes(';')
				Expect(err).To(Succeed())
				Expect(string(frame)).To(Equal("3,\x05\x00;"))
			}
		})

		It("forgets clients that hang up", func() {
			conn, err := net.Dial("tcp", tcp.Addr())
			Expect(err).To(Succeed())

			Eventually(tcp.NumConns).Should(Equal(1))

			conn.Close()

			Eventually(tcp.NumConns).Should(Equal(0))
		})

		It("disconnects clients that send oversized frames", func() {
			conn, err := net.Dial("tcp", tcp.Addr())
			Expect(err).To(Succeed())
			defer conn.Close()

			Eventually(tcp.NumConns).Should(Equal(1))

			oversized := append([]byte("1,"), bytes.Repeat([]byte("x"), protocol.DefaultMaxFrameSize)...)
			_, err = conn.Write(append(oversized, ';'))
			Expect(err).To(Succeed())

			waitForClose(conn)
			Eventually(tcp.NumConns).Should(Equal(0))
			Expect(frames).ShouldNot(Receive())
		})

		It("disconnects clients when closed", func() {
			conn, err := net.Dial("tcp", tcp.Addr())
			Expect(err).To(Succeed())
			defer conn.Close()

			Eventually(tcp.NumConns).Should(Equal(1))

			Expect(tcp.Close()).To(Succeed())

			waitForClose(conn)
		})
	})
})

func waitForClose(conn net.Conn) {
	// Wait for our client to be disconnected by the server
	Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())

	one := make([]byte, 1)
	_, err := conn.Read(one)
	Expect(err).To(HaveOccurred())

	timeoutErr, ok := err.(net.Error)
	if ok {
		Expect(timeoutErr.Timeout()).To(BeFalse(), "The client was never closed by the server")
	}
}

func makeTCPServer(frames chan<- *protocol.Frame) *transport.TCP {
	log, err := zap.NewDevelopment()
	Expect(err).To(Succeed())

	codec, err := protocol.NewCodec(protocol.Options{})
	Expect(err).To(Succeed())

	tcp := transport.NewTCP(transport.Options{
		Host:         "127.0.0.1",
		Port:         0,
		Reuseport:    true,
		NumListeners: 1,
		Codec:        codec,
		Handler: func(frame *protocol.Frame) error {
			frames <- frame
			return nil
		},
		Trace: true,
		Log:   log,
	})

	Expect(tcp.Start(context.Background())).To(Succeed())

	return tcp
}
