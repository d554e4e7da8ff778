package metrics

const (
	LabelResource = "resource"
	LabelCode     = "code"
)

const (
	ResourceUndefined   = "undefined"
	ResourceKeyMaterial = "key_material"
)

const (
	namespaceOPRF    = "oprf"
	namespaceKeyGen  = "keygen"
	namespaceSecrets = "secrets"
	namespaceWallet  = "wallet"
)

const (
	subsystemSessions = "sessions"
	subsystemWatcher  = "watcher"
	subsystemCache    = "cache"
)
