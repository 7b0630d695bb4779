package email

import "time"

// Driver names accepted by New.
const (
	DriverPostmark = "postmark"
	DriverSMTP     = "smtp"
	DriverDev      = "dev"
)

// Config selects and configures the outbound email provider.
// Only the settings of the selected driver are validated.
type Config struct {
	Driver       string `env:"MAIL_DRIVER" envDefault:"dev"`
	SenderEmail  string `env:"SENDER_EMAIL,required"`
	SenderName   string `env:"SENDER_NAME"`
	SupportEmail string `env:"SUPPORT_EMAIL,required"`

	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`

	SMTPHost        string        `env:"SMTP_HOST"`
	SMTPPort        int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername    string        `env:"SMTP_USERNAME"`
	SMTPPassword    string        `env:"SMTP_PASSWORD"`
	SMTPImplicitTLS bool          `env:"SMTP_IMPLICIT_TLS" envDefault:"false"` // port 465 style
	SMTPTimeout     time.Duration `env:"SMTP_TIMEOUT" envDefault:"20s"`

	DKIMDomain     string `env:"SMTP_DKIM_DOMAIN"`
	DKIMSelector   string `env:"SMTP_DKIM_SELECTOR"`
	DKIMPrivateKey string `env:"SMTP_DKIM_PRIVATE_KEY"`
	DKIMKeyPath    string `env:"SMTP_DKIM_KEY_PATH"`

	DevOutputDir string `env:"MAIL_DEV_DIR" envDefault:"./tmp/emails"`
}
