package email

// Config is read from the environment. Without MAIL_API_KEY, or with
// MAIL_DEV_MODE set, messages are only logged.
type Config struct {
	APIKey       string `env:"MAIL_API_KEY"`
	AccountToken string `env:"MAIL_ACCOUNT_TOKEN"`
	From         string `env:"MAIL_FROM" envDefault:"no-reply@qrmenu.local"`
	ReplyTo      string `env:"MAIL_REPLY_TO"`
	DevMode      bool   `env:"MAIL_DEV_MODE" envDefault:"false"`
}
