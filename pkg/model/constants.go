package model

// Store identifies a sub-bucket inside an account's bucket.
type Store string

const (
	KVConfig       Store = "kvConfig"
	UploadSessions Store = "uploadSessions"
)

// KeyringService is the service name used for session tokens in the
// system keyring.
const KeyringService = "sparcd-cli"
