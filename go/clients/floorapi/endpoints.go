package floorapi

const (
	// API Endpoints
	MachinesEndpoint      = "/api/machines"
	GamesEndpoint         = "/api/games"
	SessionsEndpoint      = "/api/sessions"
	CheckAutoStopEndpoint = "/api/sessions/check-auto-stop"

	// Session sub-resources, formatted with the session ID
	SessionStatusEndpoint  = "/api/sessions/%d/status"
	SessionStopEndpoint    = "/api/sessions/%d/stop"
	SessionExtendEndpoint  = "/api/sessions/%d/extend"
	SessionPaymentEndpoint = "/api/sessions/%d/payment"

	// Headers
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
)
