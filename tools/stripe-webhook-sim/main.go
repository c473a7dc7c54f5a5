// Command stripe-webhook-sim posts a signed payment_intent event to the booking webhook.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptdesk/libs/config"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const webhookPath = "/api/v1/payments/webhooks/stripe"

func main() {
	var (
		baseURL     = flag.String("base-url", config.String("BASE_URL", "http://localhost:8080"), "gateway base url")
		evtType     = flag.String("type", config.String("STRIPE_EVENT_TYPE", "payment_intent.succeeded"), "stripe event type")
		appointment = flag.String("appointment-id", config.String("APPOINTMENT_ID", ""), "appointment_id metadata")
		amount      = flag.Int64("amount", 4500, "amount in cents")
		secret      = flag.String("secret", config.String("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(*appointment) == "" {
		fatal("APPOINTMENT_ID is required")
	}

	now := time.Now().UTC()
	payload, err := buildEventJSON(fmt.Sprintf("evt_test_%d", now.UnixNano()), *evtType, now, *appointment, *amount)
	if err != nil {
		fatal(err.Error())
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+webhookPath, bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	fmt.Printf("status=%d body=%s\n", resp.StatusCode, strings.TrimSpace(string(body)))
}

// intentStatus is the payment intent status Stripe reports with each event type.
func intentStatus(eventType string) (stripe.PaymentIntentStatus, error) {
	switch eventType {
	case "payment_intent.succeeded":
		return stripe.PaymentIntentStatusSucceeded, nil
	case "payment_intent.payment_failed":
		return stripe.PaymentIntentStatusRequiresPaymentMethod, nil
	case "payment_intent.canceled":
		return stripe.PaymentIntentStatusCanceled, nil
	case "payment_intent.processing":
		return stripe.PaymentIntentStatusProcessing, nil
	}
	return "", fmt.Errorf("unsupported event type: %s", eventType)
}

func buildEventJSON(eventID, eventType string, t time.Time, appointmentID string, amount int64) ([]byte, error) {
	status, err := intentStatus(eventType)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"created":     t.Unix(),
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data": map[string]any{
			"object": map[string]any{
				"id":       fmt.Sprintf("pi_test_%d", t.UnixNano()),
				"object":   "payment_intent",
				"status":   string(status),
				"amount":   amount,
				"currency": "usd",
				"metadata": map[string]any{"appointment_id": appointmentID},
			},
		},
	})
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
