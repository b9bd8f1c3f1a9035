package common

const (
	// API_DISCOVERIES is used to list, submit or bulk-delete discoveries
	API_DISCOVERIES = "/api/v1/discoveries"

	// API_DISCOVERY addresses a single discovery
	API_DISCOVERY = "/api/v1/discoveries/{id}"

	// API_RESULT downloads a finished discovery's result archive
	API_RESULT = "/api/v1/discoveries/{id}/result"

	// API_CONFIGURATION downloads the stored configuration of a discovery
	API_CONFIGURATION = "/api/v1/discoveries/{id}/configuration"

	// API_SCHEMA lists the recognized configuration sections
	API_SCHEMA = "/api/v1/configuration-schema"
)

const (
	// FieldEventLog is the multipart field carrying the event log
	FieldEventLog = "event_log"

	// FieldConfiguration is the multipart field carrying the configuration
	FieldConfiguration = "configuration"

	// FieldCallbackURL carries the callback endpoint, either as a form
	// field or a query parameter
	FieldCallbackURL = "callback_url"
)

// DeleteResponse reports how many discoveries a delete removed.
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// SchemaResponse lists the configuration sections the service accepts.
type SchemaResponse struct {
	Sections []string `json:"sections"`
}
