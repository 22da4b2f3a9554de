package ringer

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ringer.v1.RingerService"

// Method names of RingerService.
const (
	MethodStatus             = "Status"
	MethodApply              = "Apply"
	MethodReset              = "Reset"
	MethodScheduleReset      = "ScheduleReset"
	MethodPostCallState      = "PostCallState"
	MethodPostSMS            = "PostSMS"
	MethodPostNotification   = "PostNotification"
	MethodRemoveNotification = "RemoveNotification"
	MethodUpsertContact      = "UpsertContact"
	MethodDeleteContact      = "DeleteContact"
	MethodListContacts       = "ListContacts"
)

// RingerServiceServer is the server API of RingerService.
type RingerServiceServer interface {
	Status(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Apply(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Reset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ScheduleReset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PostCallState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PostSMS(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PostNotification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RemoveNotification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpsertContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListContacts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// unaryCall invokes one method on a RingerServiceServer.
type unaryCall func(srv RingerServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// ServiceDesc describes RingerService for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Descriptors are package-level in generated gRPC code too.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RingerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodStatus, RingerServiceServer.Status),
		method(MethodApply, RingerServiceServer.Apply),
		method(MethodReset, RingerServiceServer.Reset),
		method(MethodScheduleReset, RingerServiceServer.ScheduleReset),
		method(MethodPostCallState, RingerServiceServer.PostCallState),
		method(MethodPostSMS, RingerServiceServer.PostSMS),
		method(MethodPostNotification, RingerServiceServer.PostNotification),
		method(MethodRemoveNotification, RingerServiceServer.RemoveNotification),
		method(MethodUpsertContact, RingerServiceServer.UpsertContact),
		method(MethodDeleteContact, RingerServiceServer.DeleteContact),
		method(MethodListContacts, RingerServiceServer.ListContacts),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/ringer/v1/ringer.proto",
}

// RegisterRingerServiceServer registers srv on s.
func RegisterRingerServiceServer(s grpc.ServiceRegistrar, srv RingerServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the gRPC path of a method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// method builds the descriptor of a unary method.
func method(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}

			if interceptor == nil {
				return call(srv.(RingerServiceServer), ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}

			handler := func(ctx context.Context, req any) (any, error) {
				//nolint:forcetypeassert // Guaranteed by HandlerType and the decoder above.
				return call(srv.(RingerServiceServer), ctx, req.(*structpb.Struct))
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}

// RingerServiceClient invokes RingerService methods on a connection.
type RingerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRingerServiceClient creates a client on cc.
func NewRingerServiceClient(cc grpc.ClientConnInterface) *RingerServiceClient {
	return &RingerServiceClient{cc: cc}
}

// Invoke calls the named method. A nil request is sent as an empty Struct.
func (c *RingerServiceClient) Invoke(
	ctx context.Context,
	name string,
	req *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	if req == nil {
		req = new(structpb.Struct)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(name), req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
