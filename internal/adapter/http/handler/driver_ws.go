package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/grid-dispatch/pkg/metrics"
	ws "github.com/Temutjin2k/grid-dispatch/pkg/wsHub"
)

// DriverGateway holds driver websockets and forwards proposal notifications to them.
type DriverGateway struct {
	ctx      context.Context
	hub      *ws.ConnectionHub
	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewDriverGateway creates a gateway. Connections are closed when ctx is done.
func NewDriverGateway(ctx context.Context, hub *ws.ConnectionHub, log logger.Logger) *DriverGateway {
	return &DriverGateway{
		ctx: ctx,
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeDriverWS upgrades GET /ws/drivers/{driver_id} and keeps the socket open
// until the driver disconnects.
func (g *DriverGateway) ServeDriverWS(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "driver_ws_connect")

	driverID, err := parseDriverID(r)
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	ctx = wrap.WithDriverID(ctx, driverID)

	raw, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		g.log.Warn(ctx, "failed to upgrade connection", "error", err.Error())
		return
	}

	conn := ws.NewConn(g.ctx, driverID, raw)
	if err := g.hub.Add(conn); err != nil {
		g.log.Error(ctx, "failed to register connection", err)
		_ = conn.Close()
		return
	}
	defer g.hub.Remove(conn)

	g.log.Info(ctx, "driver connected")

	err = conn.Listen(func(msgType int, data []byte) error {
		if msgType == websocket.TextMessage && strings.TrimSpace(string(data)) == "ping" {
			return conn.SendText("pong")
		}
		return nil
	})
	if err != nil && !errors.Is(err, ws.ErrConnClosed) && !isNormalClose(err) {
		g.log.Warn(ctx, "driver connection dropped", "error", err.Error())
	}

	g.log.Info(ctx, "driver disconnected")
}

// Deliver forwards a notification to its recipient if the driver is connected
// to this instance. Notifications for drivers connected elsewhere are ignored.
func (g *DriverGateway) Deliver(ctx context.Context, msg models.ProposalNotification) {
	ctx = wrap.WithRideID(wrap.WithDriverID(wrap.WithAction(ctx, "deliver_notification"), msg.RecipientUserID), msg.Data.RideID)

	err := g.hub.SendTo(msg.RecipientUserID, msg)
	switch {
	case err == nil:
		metrics.NotificationsTotal.WithLabelValues("ws_sent").Inc()
		g.log.Debug(ctx, "notification delivered")
	case errors.Is(err, ws.ErrConnIsNotFound):
		metrics.NotificationsTotal.WithLabelValues("ws_not_connected").Inc()
	default:
		metrics.NotificationsTotal.WithLabelValues("ws_failed").Inc()
		g.log.Warn(ctx, "failed to deliver notification", "error", err.Error())
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
