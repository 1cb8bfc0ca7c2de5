package driver

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/G-Research/executor-allocator/internal/domain"
)

// jsonCodecName is registered once at package init so GrpcClient can
// invoke the driver's RPCs without depending on generated protobuf
// message types — the wire payloads here are small, internal control
// messages, not a public API, so JSON-over-grpc keeps this package
// self-contained.
const jsonCodecName = "executor-allocator-json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return jsonCodecName }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

const (
	methodRetrieveLastAllocatedExecutorId = "/executorallocator.Driver/RetrieveLastAllocatedExecutorId"
	methodRemoveExecutor                  = "/executorallocator.Driver/RemoveExecutor"
)

type retrieveLastAllocatedExecutorIdRequest struct{}

type retrieveLastAllocatedExecutorIdResponse struct {
	ExecutorId int `json:"executorId"`
}

type removeExecutorRequest struct {
	ExecutorId      domain.ExecutorId `json:"executorId"`
	ExitStatus      domain.ExitStatus `json:"exitStatus"`
	ExitCausedByApp bool              `json:"exitCausedByApp"`
	Message         string            `json:"message"`
}

type removeExecutorResponse struct{}

// GrpcClient is the concrete Client, talking to the driver over a gRPC
// ClientConn established by the allocator's caller (mirroring the
// teacher's createConnectionToApi, which hands the executor a
// pre-dialed *grpc.ClientConn rather than owning dial lifecycle
// itself).
type GrpcClient struct {
	conn *grpc.ClientConn
}

func NewGrpcClient(conn *grpc.ClientConn) *GrpcClient {
	return &GrpcClient{conn: conn}
}

func (c *GrpcClient) RetrieveLastAllocatedExecutorId(ctx context.Context) (int, error) {
	var resp retrieveLastAllocatedExecutorIdResponse
	err := c.conn.Invoke(ctx, methodRetrieveLastAllocatedExecutorId,
		&retrieveLastAllocatedExecutorIdRequest{}, &resp,
		grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		return 0, errors.Wrap(err, "retrieving last allocated executor id")
	}
	return resp.ExecutorId, nil
}

func (c *GrpcClient) RemoveExecutor(executorId domain.ExecutorId, reason domain.ExitReason) {
	req := &removeExecutorRequest{
		ExecutorId:      executorId,
		ExitStatus:      reason.ExitStatus,
		ExitCausedByApp: reason.ExitCausedByApp,
		Message:         reason.Message,
	}
	var resp removeExecutorResponse
	err := c.conn.Invoke(context.Background(), methodRemoveExecutor, req, &resp,
		grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		log.Warnf("failed to notify driver of removed executor %s: %s", executorId, err)
	}
}
