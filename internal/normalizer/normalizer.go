package normalizer

import (
	"encoding/json"
	"fmt"
	"time"
)

// Parse decodes the envelope of a webhook body.
func Parse(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("decode webhook envelope: %w", err)
	}
	return env, nil
}

// UnknownObjectError is returned for envelopes from products this service does not handle.
type UnknownObjectError struct {
	Object string
}

func (e *UnknownObjectError) Error() string {
	return fmt.Sprintf("unsupported webhook object %q", e.Object)
}

// Normalize maps every message in the envelope to an InboundEvent.
func Normalize(env Envelope) Result {
	res := Result{Object: env.Object}
	switch env.Object {
	case ObjectPage, ObjectInstagram:
		normalizeMessaging(env, &res)
	case ObjectWhatsApp:
		normalizeWhatsApp(env, &res)
	default:
		res.fail(&UnknownObjectError{Object: env.Object})
	}
	return res
}

// NormalizeBody is Parse followed by Normalize.
func NormalizeBody(body []byte) (Result, error) {
	env, err := Parse(body)
	if err != nil {
		return Result{}, err
	}
	return Normalize(env), nil
}

// parseTimestamp accepts both seconds and milliseconds since the epoch.
func parseTimestamp(ts int64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	if ts >= 1_000_000_000_000 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}
