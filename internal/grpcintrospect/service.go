package grpcintrospect

import (
	"context"

	"google.golang.org/grpc"

	"github.com/webitel/push-connect-service/internal/domain/router"
	"github.com/webitel/push-connect-service/internal/storage"
	"github.com/webitel/push-connect-service/internal/storage/rowstore"
)

// server answers Stats for this process. It has no generated protobuf
// counterpart: the service is registered by hand below via a
// grpc.ServiceDesc, carrying plain structs over the shared gob codec
// (internal/rpcenc), the same approach rowstore uses against the row
// store.
type server struct {
	registry router.Registry
	pool     *rowstore.Pool
	driver   storage.Driver
	table    string
}

func (s *server) Stats(ctx context.Context, req *StatsRequest) (*StatsResponse, error) {
	stats := s.pool.Stats()
	return &StatsResponse{
		ConnectedUAIDs: s.registry.Count(),
		PoolMaxSize:    stats.MaxSize,
		PoolInUse:      stats.InUse,
		PoolIdle:       stats.Idle,
		RowStoreHealth: s.driver.HealthCheck(ctx, s.table),
	}, nil
}

const serviceName = "pushconnect.Introspect"

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*server)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Stats",
			Handler:    statsHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pushconnect/introspect",
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*server).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Stats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*server).Stats(ctx, req.(*StatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}
