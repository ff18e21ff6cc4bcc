package admin

// Config holds the single super-admin credential. An empty email or hash
// disables super-admin login.
type Config struct {
	Email        string `env:"SUPER_ADMIN_EMAIL"`
	PasswordHash string `env:"SUPER_ADMIN_PASSWORD_HASH"`
}

func (c Config) enabled() bool {
	return c.Email != "" && c.PasswordHash != ""
}
