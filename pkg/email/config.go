package email

// Config holds the email channel configuration. The Postmark tokens are
// optional so development setups can run on the file-writing dev sender;
// SenderEmail and SupportEmail are always required because they define the
// From and Reply-To identity of every outbound notification email.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
}
