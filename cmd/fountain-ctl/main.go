package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
	"github.com/streamdna/biasedlt/internal/fecwire"
	"github.com/streamdna/biasedlt/internal/oligo"
	"github.com/streamdna/biasedlt/internal/session"
	"github.com/streamdna/biasedlt/internal/sim"
)

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1:50051", "session gRPC address")
		cmd     = flag.String("cmd", "configure", "command: configure|reset|stream")
		cfgPath = flag.String("config", "encoding.yaml", "encoding config written by fountain-encode")
		loss    = flag.Float64("loss", 0, "strand loss rate for stream")
		seed    = flag.Int64("seed", 1, "shuffle seed for stream")
		timeout = flag.Duration("timeout", 60*time.Second, "overall deadline")
	)
	flag.Parse()

	dial, err := grpc.Dial(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fail(err)
	}
	defer dial.Close()
	stub := session.NewSessionClient(dial)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *cmd {
	case "configure":
		cfg, hdr := load(*cfgPath)
		req, err := session.NewConfigureRequest(hdr, cfg)
		if err != nil {
			fail(err)
		}
		if _, err := stub.Configure(ctx, req); err != nil {
			fail(err)
		}
		fmt.Println("configured")
	case "reset":
		st, err := stub.Reset(ctx, &emptypb.Empty{})
		if err != nil {
			fail(err)
		}
		obs := session.ObservationFromStruct(st)
		fmt.Println("reset ok, state:", obs.State)
	case "stream":
		if err := stream(ctx, stub, *cfgPath, *loss, *seed); err != nil {
			fail(err)
		}
	default:
		fail(fmt.Errorf("unknown cmd %q", *cmd))
	}
}

func load(path string) (*config.Encoding, *fecwire.CatalogHeader) {
	cfg, err := config.Load(path)
	if err != nil {
		fail(err)
	}
	f, err := os.Open(filepath.Join(filepath.Dir(path), cfg.Files.Catalog))
	if err != nil {
		fail(err)
	}
	defer f.Close()
	hdr, err := fecwire.ReadCatalogHeader(f)
	if err != nil {
		fail(err)
	}
	return cfg, hdr
}

// stream reads the strands, decodes them to wire packets and sends them in
// random order until the session reports completion.
func stream(ctx context.Context, stub *session.SessionClient, cfgPath string, loss float64, seed int64) error {
	cfg, hdr := load(cfgPath)
	layout, err := hdr.Layout()
	if err != nil {
		return err
	}
	_, regen, err := cfg.Build(layout)
	if err != nil {
		return err
	}
	codec, err := oligo.New(cfg.Oligo)
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(filepath.Dir(cfgPath), cfg.Files.Strands))
	if err != nil {
		return err
	}
	records, err := oligo.ReadFASTA(f)
	_ = f.Close()
	if err != nil {
		return err
	}
	var pkts []*fec.EncodedPacket
	for _, r := range records {
		b, err := codec.Decode(r.Seq)
		if err != nil {
			continue
		}
		p, _, err := fecwire.ParsePacket(b, regen)
		if err != nil {
			continue
		}
		pkts = append(pkts, p)
	}
	ch, err := sim.NewChannel(sim.ChannelScenario{LossRate: loss, Shuffle: true, Seed: seed})
	if err != nil {
		return err
	}
	pkts = ch.Apply(pkts)

	s, err := stub.Ingest(ctx)
	if err != nil {
		return err
	}
	var obs *session.Observation
	sent := 0
	for _, p := range pkts {
		if err := s.Send(wrapperspb.Bytes(fecwire.AppendPacket(nil, p, cfg.Compact))); err != nil {
			return err
		}
		sent++
		st, err := s.Recv()
		if err != nil {
			return err
		}
		obs = session.ObservationFromStruct(st)
		for _, fr := range obs.Frames {
			fmt.Printf("frame %d resolved after %d packets\n", fr, obs.Received)
		}
		if obs.Complete {
			break
		}
	}
	if err := s.CloseSend(); err != nil {
		return err
	}
	if _, err := s.Recv(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if obs == nil {
		return errors.New("no strands to send")
	}
	fmt.Fprintf(os.Stderr, "[client-stats] strands=%d sent=%d received=%d fraction=%.4f playable=%d/%d state=%s\n",
		len(records), sent, obs.Received, obs.Fraction, obs.Playable, layout.NumFrames(), obs.State)
	return nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
