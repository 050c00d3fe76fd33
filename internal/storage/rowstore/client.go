package rowstore

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/webitel/push-connect-service/internal/domain/model"
	"github.com/webitel/push-connect-service/internal/storage"
)

// Session is the concrete storage.Driver, checking a channel out of the
// pool for the duration of each call and returning it afterward — the Go
// analogue of acquiring a deadpool::managed::Object per operation.
type Session struct {
	pool   *Pool
	table  string
	logger *slog.Logger
}

var _ storage.Driver = (*Session)(nil)

// NewSession builds a Driver bound to table, drawing connections from pool.
func NewSession(pool *Pool, table string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{pool: pool, table: table, logger: logger}
}

func (s *Session) withConn(ctx context.Context, fn func(*grpc.ClientConn) error) error {
	conn, err := s.pool.Get(ctx)
	if err != nil {
		// Pool exhaustion is transient — the caller retries at the next
		// natural boundary, per spec.md §4.4. Any other acquisition
		// failure (closed pool, dial failure) means the channel itself is
		// unusable.
		if errors.Is(err, ErrPoolExhausted) {
			return storage.NewError(storage.KindTransient, "pool.get", err)
		}
		return storage.NewError(storage.KindConnection, "pool.get", err)
	}
	err = fn(conn)
	s.pool.Put(conn)
	return err
}

func (s *Session) FetchMessages(ctx context.Context, uaid string, limit int) (storage.CheckStorageResponse, error) {
	return s.fetch(ctx, uaid, nil, limit, true)
}

func (s *Session) FetchTimestampMessages(ctx context.Context, uaid string, after *int64, limit int) (storage.CheckStorageResponse, error) {
	return s.fetch(ctx, uaid, after, limit, false)
}

func (s *Session) fetch(ctx context.Context, uaid string, after *int64, limit int, topic bool) (storage.CheckStorageResponse, error) {
	req := &FetchRequest{Table: s.table, UAID: uaid, AfterTimestamp: after, Limit: int32(limit), Topic: topic}
	resp := &FetchResponse{}

	err := s.withConn(ctx, func(conn *grpc.ClientConn) error {
		return conn.Invoke(ctx, methodFetch, req, resp, grpc.ForceCodec(codec))
	})
	if err != nil {
		return storage.CheckStorageResponse{}, classifyRPCError(err, "fetch")
	}

	out := storage.CheckStorageResponse{Timestamp: resp.Timestamp}
	for _, row := range resp.Rows {
		n, convErr := rowToNotification(row)
		if convErr != nil {
			s.logger.Error("skipping row with malformed cells", slog.String("row_key", row.RowKey), slog.Any("err", convErr))
			continue
		}
		out.Messages = append(out.Messages, n)
	}
	return out, nil
}

func (s *Session) IncrementStorage(ctx context.Context, uaid string, timestamp int64) error {
	req := &IncrementRequest{Table: s.table, UAID: uaid, Timestamp: timestamp}
	resp := &Empty{}
	err := s.withConn(ctx, func(conn *grpc.ClientConn) error {
		return conn.Invoke(ctx, methodIncrement, req, resp, grpc.ForceCodec(codec))
	})
	if err != nil {
		return classifyRPCError(err, "increment_storage")
	}
	return nil
}

func (s *Session) RemoveMessage(ctx context.Context, uaid string, sortKey string) error {
	req := &RemoveRequest{Table: s.table, UAID: uaid, RowKey: sortKey}
	resp := &Empty{}
	err := s.withConn(ctx, func(conn *grpc.ClientConn) error {
		return conn.Invoke(ctx, methodRemove, req, resp, grpc.ForceCodec(codec))
	})
	if err != nil {
		return classifyRPCError(err, "remove_message")
	}
	return nil
}

func (s *Session) StoreMessage(ctx context.Context, uaid string, n model.Notification) error {
	req := &StoreRequest{Table: s.table, UAID: uaid, Row: notificationToRow(uaid, n)}
	resp := &Empty{}
	err := s.withConn(ctx, func(conn *grpc.ClientConn) error {
		return conn.Invoke(ctx, methodStore, req, resp, grpc.ForceCodec(codec))
	})
	if err != nil {
		return classifyRPCError(err, "store_message")
	}
	return nil
}

func (s *Session) StoreSubscription(ctx context.Context, uaid, channelID string) error {
	req := &StoreSubscriptionRequest{Table: s.table, UAID: uaid, Row: subscriptionRow(channelID)}
	resp := &Empty{}
	err := s.withConn(ctx, func(conn *grpc.ClientConn) error {
		return conn.Invoke(ctx, methodStoreSubscription, req, resp, grpc.ForceCodec(codec))
	})
	if err != nil {
		return classifyRPCError(err, "store_subscription")
	}
	return nil
}

func (s *Session) RemoveSubscription(ctx context.Context, uaid, channelID string) error {
	req := &RemoveSubscriptionRequest{Table: s.table, UAID: uaid, ChannelID: channelID}
	resp := &Empty{}
	err := s.withConn(ctx, func(conn *grpc.ClientConn) error {
		return conn.Invoke(ctx, methodRemoveSubscription, req, resp, grpc.ForceCodec(codec))
	})
	if err != nil {
		return classifyRPCError(err, "remove_subscription")
	}
	return nil
}

func (s *Session) HealthCheck(ctx context.Context, table string) bool {
	err := s.withConn(ctx, func(conn *grpc.ClientConn) error {
		return doHealthCheck(ctx, conn, table)
	})
	return err == nil
}

// healthCheck is used directly by the pool's recycle logic, which already
// holds a *grpc.ClientConn and shouldn't check one out of itself.
func healthCheck(ctx context.Context, conn *grpc.ClientConn, table string) bool {
	return doHealthCheck(ctx, conn, table) == nil
}

func doHealthCheck(ctx context.Context, conn *grpc.ClientConn, table string) error {
	req := &HealthRequest{Table: table}
	resp := &HealthResponse{}
	if err := conn.Invoke(ctx, methodHealth, req, resp, grpc.ForceCodec(codec)); err != nil {
		return err
	}
	if !resp.OK {
		return errors.New("rowstore: health check reported unhealthy")
	}
	return nil
}

// classifyRPCError maps a gRPC status to the storage.Kind the rest of the
// system branches on, per spec.md §4.3 / SPEC_FULL.md §7.
func classifyRPCError(err error, op string) error {
	var se *storage.Error
	if errors.As(err, &se) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		return storage.NewError(storage.KindTransient, op, err)
	}
	switch st.Code() {
	case codes.NotFound:
		return storage.NewError(storage.KindNotFound, op, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return storage.NewError(storage.KindTransient, op, err)
	case codes.Internal, codes.Unknown:
		return storage.NewError(storage.KindConnection, op, err)
	default:
		return storage.NewError(storage.KindTransient, op, err)
	}
}
