package grpc_control

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	datasource "lod-engine/src/data_source"
	"lod-engine/src/engine"
	"lod-engine/src/logger"
	"lod-engine/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func startControl(t *testing.T) (*grpc.ClientConn, *engine.Engine) {
	t.Helper()
	logger.SetOutput(io.Discard)

	e, err := engine.New(models.MEngineConfig{PrefetchRatio: 0.2}, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	e.DefineSeries("s", models.SeriesLine)
	e.SetData("s", []models.MBar{{Time: 0, Value: 1}, {Time: 1000, Value: 2}})
	e.AttachSeries("main", "s", 100)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	ds := datasource.NewMultiSourceManager(nil, nil)
	RegisterControlServer(srv, NewControlService(e, ds, nil))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, e
}

func method(name string) string {
	return "/" + ServiceName + "/" + name
}

func TestSetVisibleRange(t *testing.T) {
	conn, e := startControl(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := structpb.NewStruct(map[string]interface{}{
		"pane_id": "main", "start": 1000, "end": 2000, "width_px": 300,
	})
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, method("SetVisibleRange"), req, out); err != nil {
		t.Fatal(err)
	}
	if !out.Fields["render_window_moved"].GetBoolValue() {
		t.Error("first visible range should move the render window")
	}
	st, _ := e.PaneState("main")
	if st.WidthPx != 300 || st.VisibleRange == nil || st.VisibleRange.Start != 1000 {
		t.Fatalf("unexpected pane state %+v", st)
	}

	bad, _ := structpb.NewStruct(map[string]interface{}{"pane_id": "main", "start": 5, "end": 1})
	err := conn.Invoke(ctx, method("SetVisibleRange"), bad, new(structpb.Struct))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestSetReplayCutoffAndStats(t *testing.T) {
	conn, e := startControl(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := structpb.NewStruct(map[string]interface{}{"cutoff": 500})
	if err := conn.Invoke(ctx, method("SetReplayCutoff"), req, new(emptypb.Empty)); err != nil {
		t.Fatal(err)
	}
	if c := e.ReplayCutoff(); c == nil || *c != 500 {
		t.Fatalf("cutoff not applied: %v", c)
	}

	off, _ := structpb.NewStruct(map[string]interface{}{"cutoff": nil})
	if err := conn.Invoke(ctx, method("SetReplayCutoff"), off, new(emptypb.Empty)); err != nil {
		t.Fatal(err)
	}
	if e.ReplayCutoff() != nil {
		t.Fatal("null cutoff should disable replay")
	}

	stats := new(structpb.Struct)
	if err := conn.Invoke(ctx, method("GetStats"), &emptypb.Empty{}, stats); err != nil {
		t.Fatal(err)
	}
	if got := stats.Fields["total_points"].GetNumberValue(); got != 2 {
		t.Fatalf("total_points = %v, want 2", got)
	}
}

func TestListSources_Empty(t *testing.T) {
	conn, _ := startControl(t)
	out := new(structpb.Struct)
	if err := conn.Invoke(context.Background(), method("ListSources"), &emptypb.Empty{}, out); err != nil {
		t.Fatal(err)
	}
	if n := len(out.Fields["sources"].GetListValue().GetValues()); n != 0 {
		t.Fatalf("expected no sources, got %d", n)
	}
}

func TestReset(t *testing.T) {
	conn, e := startControl(t)
	if err := conn.Invoke(context.Background(), method("Reset"), &emptypb.Empty{}, new(emptypb.Empty)); err != nil {
		t.Fatal(err)
	}
	if ids := e.SeriesIDs(); len(ids) != 0 {
		t.Fatalf("expected no series after reset, got %v", ids)
	}
}
