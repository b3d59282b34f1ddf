package monitor

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/genevo/internal/engine"
)

func TestHookRecordsLatestSnapshot(t *testing.T) {
	Convey("Given a monitor with a hook registered for one instance", t, func() {
		m := New()
		hook := m.Hook("alg-1")

		Convey("firing the hook records a retrievable snapshot", func() {
			So(hook(engine.InfoProcessing, 3, engine.CycleResult{BestRaw: 1.5, BestTransformed: 1.5}), ShouldBeNil)

			snap, ok := m.Get("alg-1")
			So(ok, ShouldBeTrue)
			So(snap.Iteration, ShouldEqual, 3)
			So(snap.BestTransformed, ShouldEqual, 1.5)
			So(m.All(), ShouldHaveLength, 1)
		})

		Convey("a later firing overwrites the snapshot", func() {
			_ = hook(engine.InfoProcessing, 1, engine.CycleResult{BestTransformed: 9})
			_ = hook(engine.InfoProcessing, 2, engine.CycleResult{BestTransformed: 3})

			snap, _ := m.Get("alg-1")
			So(snap.Iteration, ShouldEqual, 2)
			So(snap.BestTransformed, ShouldEqual, 3.0)
		})
	})
}

func TestServeSnapshotsReturnsEverythingTracked(t *testing.T) {
	Convey("Given a server with two tracked instances", t, func() {
		m := New()
		_ = m.Hook("alg-1")(engine.InfoProcessing, 1, engine.CycleResult{BestTransformed: 1})
		_ = m.Hook("alg-2")(engine.InfoProcessing, 2, engine.CycleResult{BestTransformed: 2})

		srv := NewServer(m)
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		Convey("GET /snapshots lists both", func() {
			resp, err := ts.Client().Get(ts.URL + "/snapshots")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, 200)

			var snaps []Snapshot
			So(json.NewDecoder(resp.Body).Decode(&snaps), ShouldBeNil)
			So(snaps, ShouldHaveLength, 2)
		})
	})
}

func TestWatchPushesUpdatedSnapshot(t *testing.T) {
	Convey("Given a server watching one instance that then updates", t, func() {
		m := New()
		hook := m.Hook("alg-1")
		_ = hook(engine.InfoInit, 0, engine.CycleResult{})

		srv := NewServer(m)
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/alg-1"
		u, err := url.Parse(wsURL)
		So(err, ShouldBeNil)

		ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
		So(err, ShouldBeNil)
		defer ws.Close()

		Convey("a snapshot arrives once the hook fires again", func() {
			time.Sleep(10 * time.Millisecond)
			_ = hook(engine.InfoProcessing, 5, engine.CycleResult{BestTransformed: 42})

			var snap Snapshot
			_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
			err := ws.ReadJSON(&snap)
			So(err, ShouldBeNil)
			So(snap.Iteration, ShouldEqual, 5)
			So(snap.BestTransformed, ShouldEqual, 42.0)
		})
	})
}
