package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/pkg/slack"
)

// Boundary rejections for interaction requests. The HTTP layer maps these to
// 4xx responses; none of them change any state.
var (
	ErrBadSignature  = eris.New("notify: invalid request signature")
	ErrBadPayload    = eris.New("notify: malformed interaction payload")
	ErrUnknownAction = eris.New("notify: unknown action id")
)

// QualificationWriter records the human decision on the CRM record.
type QualificationWriter interface {
	WriteQualification(ctx context.Context, dealID, qualification string) error
	AddNote(ctx context.Context, dealID, body string) (string, error)
}

// CallbackHandler processes signed Slack interaction requests.
type CallbackHandler struct {
	crm           QualificationWriter
	slack         slack.Client
	signingSecret string
	log           *zap.Logger
	now           func() time.Time
}

// NewCallbackHandler wires the qualification reconciliation path.
func NewCallbackHandler(crm QualificationWriter, sc slack.Client, signingSecret string) *CallbackHandler {
	return &CallbackHandler{
		crm:           crm,
		slack:         sc,
		signingSecret: signingSecret,
		log:           zap.L().With(zap.String("component", "notify.callback")),
		now:           time.Now,
	}
}

// interactionPayload is the subset of the block_actions payload we read.
type interactionPayload struct {
	Type string `json:"type"`
	User struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Message struct {
		TS string `json:"ts"`
	} `json:"message"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

// Handle verifies and applies one interaction request. body is the raw
// form-encoded request body; timestamp and signature come from the request
// headers. Unknown action ids and malformed values are rejected at the
// boundary with no state change.
func (h *CallbackHandler) Handle(ctx context.Context, timestamp, signature string, body []byte) error {
	if err := slack.VerifySignature(h.signingSecret, timestamp, signature, body); err != nil {
		h.log.Warn("interaction signature rejected", zap.Error(err))
		return ErrBadSignature
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return ErrBadPayload
	}
	raw := form.Get("payload")
	if raw == "" {
		return ErrBadPayload
	}

	var payload interactionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return ErrBadPayload
	}
	if payload.Type != "block_actions" {
		// Other interaction types (view submissions, shortcuts) are not ours.
		return nil
	}

	for _, action := range payload.Actions {
		switch action.ActionID {
		case ActionOpenRecord:
			// Link button; Slack sends the event but there is nothing to do.
			continue
		case ActionQualifyAutomated, ActionQualifySales:
			if err := h.applyQualification(ctx, &payload, action.Value); err != nil {
				return err
			}
		default:
			h.log.Warn("unknown interaction action",
				zap.String("action_id", action.ActionID),
			)
			return ErrUnknownAction
		}
	}
	return nil
}

func (h *CallbackHandler) applyQualification(ctx context.Context, payload *interactionPayload, value string) error {
	parts := strings.SplitN(value, "|", 3)
	if len(parts) < 3 {
		return ErrBadPayload
	}
	dealID, qualification, dealName := parts[0], parts[1], parts[2]
	if qualification != "automated" && qualification != "sales" {
		return ErrBadPayload
	}

	user := payload.User.Name
	if user == "" {
		user = payload.User.ID
	}

	if err := h.crm.WriteQualification(ctx, dealID, qualification); err != nil {
		h.postThread(ctx, payload, fmt.Sprintf("❌ Errore aggiornamento CRM per *%s*. Riprova.", dealName))
		return eris.Wrapf(err, "notify: qualify deal %s", dealID)
	}

	display := "Sales"
	if qualification == "automated" {
		display = "Automated"
	}
	when := h.now().Format("02/01/2006 alle 15:04")

	noteBody := fmt.Sprintf("%s ha qualificato %s come %s il %s", user, dealName, display, when)
	if _, err := h.crm.AddNote(ctx, dealID, noteBody); err != nil {
		// The qualification itself landed; the note is best-effort.
		h.log.Warn("qualification note failed", zap.String("deal_id", dealID), zap.Error(err))
	}

	h.postThread(ctx, payload, fmt.Sprintf("✅ *%s* ha qualificato *%s* come *%s* il %s", user, dealName, display, when))

	h.log.Info("qualification applied",
		zap.String("deal_id", dealID),
		zap.String("qualification", qualification),
		zap.String("user", user),
	)
	return nil
}

func (h *CallbackHandler) postThread(ctx context.Context, payload *interactionPayload, text string) {
	if payload.Channel.ID == "" || payload.Message.TS == "" {
		return
	}
	_, err := h.slack.PostMessage(ctx, slack.MessageRequest{
		Channel:  payload.Channel.ID,
		ThreadTS: payload.Message.TS,
		Text:     text,
	})
	if err != nil {
		h.log.Warn("thread confirmation failed", zap.Error(err))
	}
}
