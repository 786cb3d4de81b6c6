package grpc_control

import (
	"context"
	"encoding/json"
	"fmt"

	datasource "lod-engine/src/data_source"
	"lod-engine/src/engine"
	"lod-engine/src/logger"
	"lod-engine/src/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "lodengine.Control"

// ControlService lets an operator steer panes and replay without the HTTP API.
// Requests and replies are google.protobuf.Struct so no generated code is needed.
type ControlService struct {
	Engine     *engine.Engine
	DataSource *datasource.MultiSourceManager
	Logger     *logger.Logger
}

var _ ControlServer = (*ControlService)(nil)

// NewControlService creates a new instance of ControlService
func NewControlService(eng *engine.Engine, ds *datasource.MultiSourceManager, log *logger.Logger) *ControlService {
	if log == nil {
		log = logger.NewLogger(nil, "ControlService")
	}
	return &ControlService{
		Engine:     eng,
		DataSource: ds,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

// SetVisibleRange expects {pane_id, start, end, width_px?}
func (s *ControlService) SetVisibleRange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	paneID := fields["pane_id"].GetStringValue()
	if paneID == "" {
		return nil, status.Error(codes.InvalidArgument, "pane_id is required")
	}
	start, okStart := fields["start"]
	end, okEnd := fields["end"]
	if !okStart || !okEnd {
		return nil, status.Error(codes.InvalidArgument, "start and end are required")
	}
	r := models.MTimeRange{Start: int64(start.GetNumberValue()), End: int64(end.GetNumberValue())}
	if r.End < r.Start {
		return nil, status.Errorf(codes.InvalidArgument, "end %d is before start %d", r.End, r.Start)
	}

	if w := int(fields["width_px"].GetNumberValue()); w > 0 {
		s.Engine.SetPaneWidth(paneID, w)
	}
	moved := s.Engine.SetVisibleRange(paneID, r)
	s.Logger.Info("gRPC: pane %s visible [%d, %d], window moved: %v", paneID, r.Start, r.End, moved)

	st, _ := s.Engine.PaneState(paneID)
	pane, err := toStruct(st)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	pane.Fields["render_window_moved"] = structpb.NewBoolValue(moved)
	return pane, nil
}

// -----------------------------------------------------------------------------

// SetReplayCutoff expects {cutoff: number|null}; a missing or null cutoff disables replay.
func (s *ControlService) SetReplayCutoff(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	v, ok := req.GetFields()["cutoff"]
	if !ok {
		s.Engine.SetReplayCutoff(nil)
		return &emptypb.Empty{}, nil
	}
	switch v.GetKind().(type) {
	case *structpb.Value_NullValue:
		s.Engine.SetReplayCutoff(nil)
	case *structpb.Value_NumberValue:
		cutoff := int64(v.GetNumberValue())
		s.Engine.SetReplayCutoff(&cutoff)
	default:
		return nil, status.Error(codes.InvalidArgument, "cutoff must be a number or null")
	}
	return &emptypb.Empty{}, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := toStruct(s.Engine.Stats())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListSources(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	var names []interface{}
	if s.DataSource != nil {
		for _, src := range s.DataSource.GetAllSources() {
			names = append(names, src.Name())
		}
	}
	out, err := structpb.NewStruct(map[string]interface{}{"sources": names})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// toStruct goes through JSON so the struct tags of the models apply
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// -----------------------------------------------------------------------------

// Reset drops every series and all cached output. Dropped series stay out of
// the tail poll until the service restarts.
func (s *ControlService) Reset(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.Engine.Reset()
	s.Logger.Info("gRPC: engine reset")
	return &emptypb.Empty{}, nil
}
