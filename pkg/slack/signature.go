package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// maxSignatureAge bounds how old a signed request may be. Requests outside
// the window are rejected to limit replay.
const maxSignatureAge = 5 * time.Minute

// VerifySignature checks a request's v0 signature against the signing
// secret. body is the raw request body, timestamp the X-Slack-Request-Timestamp
// header, and signature the X-Slack-Signature header.
func VerifySignature(signingSecret, timestamp, signature string, body []byte) error {
	return verifySignatureAt(signingSecret, timestamp, signature, body, time.Now())
}

func verifySignatureAt(signingSecret, timestamp, signature string, body []byte, now time.Time) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return eris.Wrap(err, "slack: parse request timestamp")
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > maxSignatureAge || age < -maxSignatureAge {
		return eris.Errorf("slack: request timestamp outside allowed window: %s", age)
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return eris.New("slack: signature mismatch")
	}
	return nil
}
