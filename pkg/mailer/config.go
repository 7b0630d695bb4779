package mailer

// Config holds the application identity used in message copy and links.
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"MailQueue"`
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
}
