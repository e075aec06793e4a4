package revenue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-qualifier/internal/model"
)

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"GRIVEL S.R.L.", "Grivel Srl", 0.99, 1.0},
		{"ACME COMMERCE SRL", "Acme Commerce S.r.l.", 0.99, 1.0},
		{"Società Agricola Verdàmica S.S.", "societa agricola verdamica", 0.6, 1.0},
		{"ACME SRL", "Wholly Different SpA", 0, 0.1},
		{"", "Acme", 0, 0},
	}
	for _, tt := range tests {
		got := nameSimilarity(tt.a, tt.b)
		assert.GreaterOrEqual(t, got, tt.min, "%q vs %q", tt.a, tt.b)
		assert.LessOrEqual(t, got, tt.max, "%q vs %q", tt.a, tt.b)
	}
}

func TestVATInEvidence(t *testing.T) {
	assert.True(t, vatInEvidence("Partita IVA 00139110076 Courmayeur", "00139110076"))
	assert.True(t, vatInEvidence("P.IVA: 00139110076", "IT00139110076"))
	assert.True(t, vatInEvidence("codice IT00139110076 attivo", "00139110076"))
	assert.False(t, vatInEvidence("P.IVA: 99999999999", "00139110076"))
	assert.False(t, vatInEvidence("prefix100139110076suffix", "00139110076"))
	assert.False(t, vatInEvidence("", "00139110076"))
}

func TestValidate(t *testing.T) {
	v := &Validator{Threshold: 0.6}

	t.Run("identity-bound keeps confidence", func(t *testing.T) {
		c := &Candidate{Confidence: model.ConfidenceHigh, IdentityBound: true}
		ok, conf := v.Validate(c, "Acme Srl", "00139110076")
		assert.True(t, ok)
		assert.Equal(t, model.ConfidenceHigh, conf)
	})

	t.Run("name match validates", func(t *testing.T) {
		c := &Candidate{Confidence: model.ConfidenceHigh, FoundName: "GRIVEL S.R.L."}
		ok, conf := v.Validate(c, "Grivel Srl", "")
		assert.True(t, ok)
		assert.Equal(t, model.ConfidenceHigh, conf)
	})

	t.Run("vat in evidence validates", func(t *testing.T) {
		c := &Candidate{
			Confidence: model.ConfidenceHigh,
			FoundName:  "Registro Imprese",
			Evidence:   "scheda azienda P.IVA 00139110076 bilancio 2024",
		}
		ok, conf := v.Validate(c, "Grivel Srl", "00139110076")
		assert.True(t, ok)
		assert.Equal(t, model.ConfidenceHigh, conf)
	})

	t.Run("both checks failing downgrades high to low", func(t *testing.T) {
		c := &Candidate{
			Confidence: model.ConfidenceHigh,
			FoundName:  "Altra Azienda SpA",
			Evidence:   "nessun identificativo qui",
		}
		ok, conf := v.Validate(c, "Grivel Srl", "00139110076")
		assert.False(t, ok)
		assert.Equal(t, model.ConfidenceLow, conf)
	})

	t.Run("low stays low when unvalidated", func(t *testing.T) {
		c := &Candidate{Confidence: model.ConfidenceLow}
		ok, conf := v.Validate(c, "Grivel Srl", "00139110076")
		assert.False(t, ok)
		assert.Equal(t, model.ConfidenceLow, conf)
	})
}
