package types

type ServiceMode string

// API Service - driver presence heartbeats, ride intake and proposal acceptance
// Dispatch Service - ride event consumers (matching) and the proposal timeout sweeper
// Gateway Service - delivers proposal notifications to connected drivers over WebSocket
const (
	APIService      ServiceMode = "api-service"
	DispatchService ServiceMode = "dispatch-service"
	GatewayService  ServiceMode = "gateway-service"
)

func (m ServiceMode) String() string {
	return string(m)
}

// Valid reports whether m names a known service mode.
func (m ServiceMode) Valid() bool {
	switch m {
	case APIService, DispatchService, GatewayService:
		return true
	default:
		return false
	}
}

// Enum для статуса водителя
type DriverStatus string

const (
	StatusDriverOffline DriverStatus = "offline"
	StatusDriverOnline  DriverStatus = "online"
	StatusDriverBusy    DriverStatus = "busy"
)

func (s DriverStatus) Valid() bool {
	switch s {
	case StatusDriverOffline, StatusDriverOnline, StatusDriverBusy:
		return true
	default:
		return false
	}
}

// EventLogDriver selects the transport backing the ride event log.
type EventLogDriver string

const (
	EventLogRedis    EventLogDriver = "redis"
	EventLogRabbitMQ EventLogDriver = "rabbitmq"
)
