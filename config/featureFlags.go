package config

import (
	"os"
	"strconv"
	"strings"
)

// ClaimTTLMinutes enables the opt-in claim lease reaper: claims older than
// the TTL are released back into the pool by a background loop. 0 disables
// the reaper, which is the default contract — a claim lives until the
// planner releases it or the solicitud closes.
//
// Set via env:
// - SPM_CLAIM_TTL_MINUTES=240
func ClaimTTLMinutes() int {
	v := strings.TrimSpace(os.Getenv("SPM_CLAIM_TTL_MINUTES"))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// OutboxDirectPublish makes the dispatcher complete outbox rows locally
// instead of publishing to Pub/Sub. Intended for local/dev environments
// where Pub/Sub is not configured; the in-app notificaciones written by the
// triggering transaction are the delivery in that mode.
//
// Set via env:
// - SPM_OUTBOX_DIRECT=true
func OutboxDirectPublish() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SPM_OUTBOX_DIRECT")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
