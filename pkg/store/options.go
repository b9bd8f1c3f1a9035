package store

// Options configure the artifact store. Path selects the filesystem store;
// Endpoint selects the S3 store. Exactly one should be set.
type Options struct {
	// Path is a directory on the local filesystem to keep artifacts in.
	Path string

	// Endpoint is an S3 compatible endpoint (host:port).
	Endpoint string

	// AccessKey / SecretKey are S3 credentials.
	AccessKey string
	SecretKey string

	// Bucket artifacts are kept in.
	Bucket string

	// UseSSL connects to the endpoint over TLS.
	UseSSL bool
}
