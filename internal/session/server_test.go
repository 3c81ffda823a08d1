package session

import (
	"context"
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
	"github.com/streamdna/biasedlt/internal/fecwire"
)

var _ = Describe("Session service", func() {
	var (
		client *SessionClient
		cat    *fec.FrameCatalog
		cfg    config.Encoding
	)

	BeforeEach(func() {
		lis := bufconn.Listen(1 << 20)
		srv := grpc.NewServer()
		RegisterSessionServer(srv, NewGRPC(NewServer(nil)))
		go func() { _ = srv.Serve(lis) }()

		conn, err := grpc.DialContext(context.Background(), "bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = conn.Close()
			srv.Stop()
		})
		client = NewSessionClient(conn)

		cat = testCatalog(4, 2, 16, 11)
		cfg = config.Default()
		cfg.SymbolSize = 16
		cfg.Compact = true
	})

	configure := func(ctx context.Context) {
		hdr, err := fecwire.NewCatalogHeader(cat)
		Expect(err).NotTo(HaveOccurred())
		req, err := NewConfigureRequest(hdr, &cfg)
		Expect(err).NotTo(HaveOccurred())
		_, err = client.Configure(ctx, req)
		Expect(err).NotTo(HaveOccurred())
	}

	It("refuses to reset before it is configured", func(ctx SpecContext) {
		_, err := client.Reset(ctx, &emptypb.Empty{})
		Expect(status.Code(err)).To(Equal(codes.FailedPrecondition))
	})

	It("rejects a malformed configuration", func(ctx SpecContext) {
		req, err := structpb.NewStruct(map[string]interface{}{"catalog": "not base64!", "config": ""})
		Expect(err).NotTo(HaveOccurred())
		_, err = client.Configure(ctx, req)
		Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
	})

	It("decodes compact packets streamed by a client", func(ctx SpecContext) {
		configure(ctx)
		stream, err := client.Ingest(ctx)
		Expect(err).NotTo(HaveOccurred())

		enc := testEncoder(cat, &cfg)
		var last *Observation
		var frames []int
		for i := 0; i < 10000; i++ {
			pkt, ok := enc.Next()
			Expect(ok).To(BeTrue())
			Expect(stream.Send(wrapperspb.Bytes(fecwire.AppendPacket(nil, pkt, true)))).To(Succeed())
			st, err := stream.Recv()
			Expect(err).NotTo(HaveOccurred())
			last = ObservationFromStruct(st)
			Expect(last.Err).To(BeEmpty())
			frames = append(frames, last.Frames...)
			if last.Complete {
				break
			}
		}
		Expect(stream.CloseSend()).To(Succeed())

		Expect(last.Complete).To(BeTrue())
		Expect(last.State).To(Equal(fec.StateComplete))
		Expect(last.Playable).To(Equal(4))
		Expect(frames).To(ConsistOf(0, 1, 2, 3))

		st, err := client.Reset(ctx, &emptypb.Empty{})
		Expect(err).NotTo(HaveOccurred())
		obs := ObservationFromStruct(st)
		Expect(obs.State).To(Equal(fec.StateInit))
		Expect(obs.Fraction).To(BeZero())
		Expect(obs.Playable).To(BeZero())
	})

	It("reports corrupt packets without closing the stream", func(ctx SpecContext) {
		configure(ctx)
		stream, err := client.Ingest(ctx)
		Expect(err).NotTo(HaveOccurred())

		enc := testEncoder(cat, &cfg)
		pkt, _ := enc.Next()
		b := fecwire.AppendPacket(nil, pkt, true)
		b[len(b)-1] ^= 0xff
		Expect(stream.Send(wrapperspb.Bytes(b))).To(Succeed())
		st, err := stream.Recv()
		Expect(err).NotTo(HaveOccurred())
		obs := ObservationFromStruct(st)
		Expect(obs.Err).NotTo(BeEmpty())
		Expect(obs.Received).To(BeZero())

		Expect(stream.Send(wrapperspb.Bytes(fecwire.AppendPacket(nil, pkt, true)))).To(Succeed())
		st, err = stream.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(ObservationFromStruct(st).Received).To(Equal(1))
	})
})

var _ = Describe("Observation", func() {
	It("round-trips through a struct", func() {
		obs := &Observation{State: fec.StateStalled, Fraction: 0.5, Received: 9, Playable: 2, Symbols: 3, Frames: []int{2, 4}, Err: "bad"}
		Expect(ObservationFromStruct(ObservationStruct(obs))).To(Equal(obs))
	})
})
