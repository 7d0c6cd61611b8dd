package devenv

// UCDTestConfig is read from dev/.state/ucd_config.json5 by tests that talk
// to the live portal.
type UCDTestConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// optional, connect to an already running chrome instead of launching one
	RemoteUrl string `json:"remote_url"`
}
