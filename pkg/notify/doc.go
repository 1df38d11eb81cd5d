// Package notify delivers expiration warnings to demo users.
//
// Delivery itself belongs to a mail relay outside this module. The
// WebhookNotifier POSTs each message to the relay as JSON:
//
//	POST /send
//	Content-Type: application/json
//	X-Evalhub-Signature: sha256=<hex hmac of the body>
//
//	{"to": "t@example.com", "subject": "...", "body": "...", "user_id": 42}
//
// A send is a single attempt. Failures return ErrNotificationFailed and are
// never retried here; the lifecycle scheduler records them and the next
// scheduled run tries again.
package notify
