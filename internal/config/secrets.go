package config

// Redacted returns a copy of the config with secret material masked, safe
// for logging at startup.
func (c Config) Redacted() Config {
	out := c
	out.Storage.Password = mask(c.Storage.Password)
	out.Storage.DSN = mask(c.Storage.DSN)
	out.Redis.Password = mask(c.Redis.Password)
	out.S3.AccessKey = mask(c.S3.AccessKey)
	out.S3.SecretKey = mask(c.S3.SecretKey)
	out.Server.APIKeyHash = mask(c.Server.APIKeyHash)
	out.Notify.TelegramToken = mask(c.Notify.TelegramToken)
	out.Notify.DiscordWebhookURL = mask(c.Notify.DiscordWebhookURL)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
