// Package notify builds and dispatches the qualification report message and
// reconciles the human qualification decision back onto the CRM record.
package notify

import (
	"fmt"
	"strings"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/slack"
)

// Action ids on the report buttons. The first two carry a qualification
// decision; the third is a plain link.
const (
	ActionQualifyAutomated = "qualify_automated"
	ActionQualifySales     = "qualify_sales"
	ActionOpenRecord       = "open_record"
)

// BuildMessage renders the full report for one processed deal as a Block Kit
// message.
func BuildMessage(channel string, deal *model.Deal, rec *model.EnrichmentRecord, score *model.ScoreResult, recordURL string) slack.MessageRequest {
	blocks := []slack.Block{
		{
			Type: "header",
			Text: &slack.Text{Type: "plain_text", Text: fmt.Sprintf("⚡ Deal Analysis - %s", deal.Name)},
		},
		dealInfoBlock(deal, rec),
		scoreBlock(score),
		{Type: "divider"},
		revenueBlock(&rec.Revenue),
		{Type: "divider"},
		paymentBlock(&rec.Payments, score),
	}

	if traffic := trafficBlock(&rec.Traffic); traffic != nil {
		blocks = append(blocks, *traffic)
	}
	if tech := techBlock(&rec.Tech); tech != nil {
		blocks = append(blocks, *tech)
	}

	blocks = append(blocks,
		slack.Block{Type: "divider"},
		slack.Block{
			Type: "section",
			Text: &slack.Text{Type: "mrkdwn", Text: "*🎯 Qualifica questo deal:*"},
		},
		actionsBlock(deal, recordURL),
	)

	return slack.MessageRequest{
		Channel: channel,
		Text:    fmt.Sprintf("Deal Analysis - %s", deal.Name),
		Blocks:  blocks,
	}
}

func dealInfoBlock(deal *model.Deal, rec *model.EnrichmentRecord) slack.Block {
	name := rec.Revenue.RegisteredName
	if name == "" {
		name = "N/D"
	}
	lines := []string{
		":office: *Deal Info*",
		fmt.Sprintf("• *Ragione Sociale:* %s", name),
		fmt.Sprintf("• *P.IVA:* %s", orND(deal.VATNumber)),
		fmt.Sprintf("• *Deal ID:* %s", deal.ID),
		fmt.Sprintf("• *Category:* %s", orND(deal.Category)),
		fmt.Sprintf("• *Store Type:* %s", orND(string(deal.StoreType))),
	}
	return mrkdwnSection(strings.Join(lines, "\n"))
}

func scoreBlock(score *model.ScoreResult) slack.Block {
	stars := strings.Repeat(":star:", score.Score) + strings.Repeat(":white_circle:", 10-score.Score)
	text := fmt.Sprintf(":brain: *Score*\n%s (%d/10)", stars, score.Score)
	if score.Clamped {
		text += "\n_Score limitato: criteri non tutti soddisfatti_"
	}
	if score.Rationale != "" {
		text += "\n" + score.Rationale
	}
	return mrkdwnSection(text)
}

func revenueBlock(est *model.RevenueEstimate) slack.Block {
	line := "N/D"
	if est.Determined() {
		line = est.Value.String()
		switch est.Confidence {
		case model.ConfidenceHigh:
			line += " ✅ _Confidence: HIGH_"
		case model.ConfidenceLow:
			line += " ❌ _Confidence: LOW - verificare manualmente_"
		}
		if !est.Validated {
			line += " (identità non verificata)"
		}
	}

	text := fmt.Sprintf(":moneybag: *Revenue*\n• *Fatturato:* %s", line)
	if est.FiscalYear > 0 {
		text += fmt.Sprintf("\n• *Anno:* %d", est.FiscalYear)
	}
	if len(est.Diagnostics) > 0 {
		text += "\n:mag: *Diagnostica ricerca:*"
		for _, d := range est.Diagnostics {
			text += fmt.Sprintf("\n  → _%s_", d)
		}
	}
	return mrkdwnSection(text)
}

func paymentBlock(p *model.PaymentDetectionResult, score *model.ScoreResult) slack.Block {
	payments := "N/D"
	if len(p.Processors) > 0 {
		payments = strings.Join(p.Processors, ", ")
	}

	bnpl := ":white_check_mark: No"
	if p.HasCompetitor() || score.Flags.HasCompetitorPaymentMethod {
		bnpl = ":warning: Si"
		if len(p.Competitors) > 0 {
			bnpl += fmt.Sprintf(" (%s)", strings.Join(p.Competitors, ", "))
		}
		if p.Stage != "" {
			bnpl += fmt.Sprintf(" [%s]", p.Stage)
		}
	}

	text := fmt.Sprintf(":credit_card: *Payment Detection*\n• *Payment Stack:* %s\n• *BNPL Competitor:* %s\n• *Confidence:* %d/100 (%s)",
		payments, bnpl, p.Score, orND(p.Label))
	if p.Blocked {
		text += fmt.Sprintf("\n• *Blocco anti-bot:* %s", p.BlockKind)
	}
	return mrkdwnSection(text)
}

func trafficBlock(t *model.TrafficStats) *slack.Block {
	if !t.SearchAvailable && !t.VisitsAvailable {
		return nil
	}
	var lines []string
	lines = append(lines, ":chart_with_upwards_trend: *Traffic*")
	if t.VisitsAvailable {
		lines = append(lines, fmt.Sprintf("• *Visite mensili:* %d (YoY %+.0f%%)", t.Visits, t.VisitsYoY*100))
	}
	if t.SearchAvailable {
		lines = append(lines, fmt.Sprintf("• *Ricerca (%s):* %d organico, %d paid", t.CountryDatabase, t.OrganicMonthly, t.PaidMonthly))
	}
	b := mrkdwnSection(strings.Join(lines, "\n"))
	return &b
}

func techBlock(t *model.TechStackResult) *slack.Block {
	if len(t.Storefront) == 0 && len(t.Analytics) == 0 && len(t.Payments) == 0 {
		return nil
	}
	var lines []string
	lines = append(lines, ":gear: *Tech Stack*")
	if len(t.Storefront) > 0 {
		lines = append(lines, fmt.Sprintf("• *Storefront:* %s", strings.Join(t.Storefront, ", ")))
	}
	if len(t.Analytics) > 0 {
		lines = append(lines, fmt.Sprintf("• *Analytics:* %s", strings.Join(t.Analytics, ", ")))
	}
	if len(t.Payments) > 0 {
		lines = append(lines, fmt.Sprintf("• *Payment SDK:* %s", strings.Join(t.Payments, ", ")))
	}
	b := mrkdwnSection(strings.Join(lines, "\n"))
	return &b
}

func actionsBlock(deal *model.Deal, recordURL string) slack.Block {
	elements := []slack.Element{
		{
			Type:     "button",
			Text:     &slack.Text{Type: "plain_text", Text: "🤖 Automated"},
			Value:    ActionValue(deal.ID, "automated", deal.Name),
			ActionID: ActionQualifyAutomated,
		},
		{
			Type:     "button",
			Text:     &slack.Text{Type: "plain_text", Text: "👤 Sales"},
			Value:    ActionValue(deal.ID, "sales", deal.Name),
			ActionID: ActionQualifySales,
		},
	}
	if recordURL != "" {
		elements = append(elements, slack.Element{
			Type:     "button",
			Text:     &slack.Text{Type: "plain_text", Text: "🔗 Apri il deal"},
			URL:      recordURL,
			ActionID: ActionOpenRecord,
		})
	}
	return slack.Block{Type: "actions", Elements: elements}
}

// ActionValue encodes a qualification button payload.
func ActionValue(dealID, qualification, dealName string) string {
	return fmt.Sprintf("%s|%s|%s", dealID, qualification, dealName)
}

func mrkdwnSection(text string) slack.Block {
	return slack.Block{Type: "section", Text: &slack.Text{Type: "mrkdwn", Text: text}}
}

func orND(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/D"
	}
	return s
}
