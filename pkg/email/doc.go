// Package email provides the transport behind the notification email channel.
//
// Two EmailSender implementations are included:
//
//   - NewPostmarkClient: production sender backed by Postmark's transactional
//     API with open and link tracking enabled.
//   - NewDevSender: development sender that writes each email to disk as an
//     HTML file plus JSON metadata instead of sending it.
//
// Both return a provider message ID on success, which the delivery layer
// stores on the attempt record so provider webhooks (delivered, bounced,
// opened, clicked) can be matched back to a delivery.
//
// Usage:
//
//	var cfg email.Config
//	config.MustLoad(&cfg)
//	sender := email.MustNewPostmarkClient(cfg)
//	id, err := sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Event reminder",
//		BodyHTML: body,
//		Tag:      "event-reminder",
//	})
package email
