package types

const (
	ActionRabbitMQConnected       = "rabbitmq_connected"
	ActionRabbitConnectionClosed  = "rabbitmq_connection_closed"
	ActionRabbitConnectionClosing = "rabbitmq_connection_closing"
	ActionRabbitReconnected       = "rabbitmq_reconnection_success"

	ActionRedisConnected = "redis_connected"

	ActionDispatchRide     = "dispatch_ride"
	ActionSweepProposals   = "sweep_proposals"
	ActionUpdatePresence   = "update_presence"
	ActionEnsureEventLog   = "ensure_event_log"
	ActionDeliverProposal  = "deliver_proposal"
	ActionCreateRide       = "create_ride"
	ActionAcceptProposal   = "accept_proposal"
	ActionRecordOutcome    = "record_dispatch_outcome"
	ActionDatabaseMigrated = "database_migrated"
)
