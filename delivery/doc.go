// Package delivery provides goReset.DeliveryAdapter implementations for
// sending reset codes out of band.
//
// SMTPAdapter sends a plain text email, WebhookAdapter posts a JSON
// document to an HTTP endpoint and LogAdapter writes a log line for local
// demos. Breaker wraps any adapter in a circuit breaker so a dead mail
// relay stops consuming delivery workers.
//
// Adapters must never log the code. LogAdapter only includes it when
// RevealCode is set explicitly.
package delivery
