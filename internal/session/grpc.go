package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
	"github.com/streamdna/biasedlt/internal/fecwire"
)

// The service is described by hand over well-known message types:
//
//	service Session {
//	  rpc Configure(google.protobuf.Struct) returns (google.protobuf.Empty);
//	  rpc Reset(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc Ingest(stream google.protobuf.BytesValue) returns (stream google.protobuf.Struct);
//	}
const (
	serviceName     = "biasedlt.Session"
	configureMethod = "/" + serviceName + "/Configure"
	resetMethod     = "/" + serviceName + "/Reset"
	ingestMethod    = "/" + serviceName + "/Ingest"
)

// SessionServer is the server API of biasedlt.Session.
type SessionServer interface {
	Configure(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Reset(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Ingest(Session_IngestServer) error
}

type Session_IngestServer interface {
	Send(*structpb.Struct) error
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ServerStream
}

var Session_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Configure", Handler: _Session_Configure_Handler},
		{MethodName: "Reset", Handler: _Session_Reset_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Ingest", Handler: _Session_Ingest_Handler, ServerStreams: true, ClientStreams: true},
	},
	Metadata: "biasedlt/session.proto",
}

func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&Session_ServiceDesc, srv)
}

func _Session_Configure_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServer).Configure(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: configureMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServer).Configure(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Session_Reset_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServer).Reset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: resetMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServer).Reset(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Session_Ingest_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(SessionServer).Ingest(&sessionIngestServer{stream})
}

type sessionIngestServer struct {
	grpc.ServerStream
}

func (x *sessionIngestServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *sessionIngestServer) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// GRPC adapts a Server to SessionServer.
type GRPC struct {
	inner *Server
}

func NewGRPC(inner *Server) *GRPC { return &GRPC{inner: inner} }

func (g *GRPC) Configure(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	hdr, cfg, err := ParseConfigureRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := g.inner.Configure(ctx, hdr, cfg); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &emptypb.Empty{}, nil
}

func (g *GRPC) Reset(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	obs, err := g.inner.Reset(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return ObservationStruct(obs), nil
}

func (g *GRPC) Ingest(stream Session_IngestServer) error {
	recv := func() ([]byte, error) {
		m, err := stream.Recv()
		if err != nil {
			return nil, err
		}
		return m.GetValue(), nil
	}
	send := func(obs *Observation) error {
		return stream.Send(ObservationStruct(obs))
	}
	return grpcError(g.inner.Ingest(recv, send))
}

func grpcError(err error) error {
	if errors.Is(err, ErrNotConfigured) {
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return err
}

// SessionClient is the client API of biasedlt.Session.
type SessionClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionClient(cc grpc.ClientConnInterface) *SessionClient { return &SessionClient{cc: cc} }

func (c *SessionClient) Configure(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, configureMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionClient) Reset(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, resetMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionClient) Ingest(ctx context.Context, opts ...grpc.CallOption) (*IngestClient, error) {
	stream, err := c.cc.NewStream(ctx, &Session_ServiceDesc.Streams[0], ingestMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &IngestClient{stream}, nil
}

// IngestClient is the client side of the Ingest stream.
type IngestClient struct {
	grpc.ClientStream
}

func (x *IngestClient) Send(m *wrapperspb.BytesValue) error {
	return x.ClientStream.SendMsg(m)
}

func (x *IngestClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewConfigureRequest packs a catalog header and encoding config.
func NewConfigureRequest(hdr *fecwire.CatalogHeader, cfg *config.Encoding) (*structpb.Struct, error) {
	y, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]interface{}{
		"catalog": base64.StdEncoding.EncodeToString(hdr.MarshalBinary()),
		"config":  string(y),
	})
}

func ParseConfigureRequest(req *structpb.Struct) (*fecwire.CatalogHeader, *config.Encoding, error) {
	fields := req.GetFields()
	raw, err := base64.StdEncoding.DecodeString(fields["catalog"].GetStringValue())
	if err != nil {
		return nil, nil, fmt.Errorf("catalog: %w", err)
	}
	var hdr fecwire.CatalogHeader
	if err := hdr.UnmarshalBinary(raw); err != nil {
		return nil, nil, fmt.Errorf("catalog: %w", err)
	}
	cfg, err := config.Parse([]byte(fields["config"].GetStringValue()))
	if err != nil {
		return nil, nil, err
	}
	return &hdr, cfg, nil
}

func ObservationStruct(obs *Observation) *structpb.Struct {
	frames := make([]*structpb.Value, len(obs.Frames))
	for i, f := range obs.Frames {
		frames[i] = structpb.NewNumberValue(float64(f))
	}
	fields := map[string]*structpb.Value{
		"state":      structpb.NewNumberValue(float64(obs.State)),
		"state_name": structpb.NewStringValue(obs.State.String()),
		"fraction":   structpb.NewNumberValue(obs.Fraction),
		"received":   structpb.NewNumberValue(float64(obs.Received)),
		"playable":   structpb.NewNumberValue(float64(obs.Playable)),
		"complete":   structpb.NewBoolValue(obs.Complete),
		"symbols":    structpb.NewNumberValue(float64(obs.Symbols)),
		"frames":     structpb.NewListValue(&structpb.ListValue{Values: frames}),
	}
	if obs.Err != "" {
		fields["error"] = structpb.NewStringValue(obs.Err)
	}
	return &structpb.Struct{Fields: fields}
}

func ObservationFromStruct(st *structpb.Struct) *Observation {
	f := st.GetFields()
	obs := &Observation{
		State:    fec.DecoderState(f["state"].GetNumberValue()),
		Fraction: f["fraction"].GetNumberValue(),
		Received: int(f["received"].GetNumberValue()),
		Playable: int(f["playable"].GetNumberValue()),
		Complete: f["complete"].GetBoolValue(),
		Symbols:  int(f["symbols"].GetNumberValue()),
		Err:      f["error"].GetStringValue(),
	}
	for _, v := range f["frames"].GetListValue().GetValues() {
		obs.Frames = append(obs.Frames, int(v.GetNumberValue()))
	}
	return obs
}
