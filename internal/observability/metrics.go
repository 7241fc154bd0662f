package observability

const (
	// RED metrics over ledger use cases.
	MUsecaseRequests MetricKey = "usecase_requests_total"
	MUsecaseDuration MetricKey = "usecase_duration_seconds"

	// Ledger-specific counters.
	MReservationRecomputes MetricKey = "reservation_recomputes_total"
	MReconcileRuns         MetricKey = "reconcile_runs_total"
	MEventPublishFailures  MetricKey = "event_publish_failed_total"
)
