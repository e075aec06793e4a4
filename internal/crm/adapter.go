// Package crm maps CRM deal records onto the pipeline's deal model. The CRM
// client speaks raw property maps; everything above this package works with
// typed deals.
package crm

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/hubspot"
)

// Fixed CRM property names. The pipeline's own three properties (status,
// result, qualification) are configurable; these belong to the deal record
// itself.
const (
	propName      = "dealname"
	propAmount    = "amount"
	propPipeline  = "pipeline"
	propSource    = "generic_source"
	propVAT       = "iva_vat"
	propDomain    = "company_domain_name"
	propCategory  = "category"
	propStoreType = "store_type"
)

// Adapter wraps the CRM client with deal-model mapping and the pipeline's
// read/write operations.
type Adapter struct {
	client hubspot.Client
	cfg    config.HubSpotConfig
	log    *zap.Logger
}

// NewAdapter builds an Adapter with the configured property names.
func NewAdapter(client hubspot.Client, cfg config.HubSpotConfig) *Adapter {
	return &Adapter{
		client: client,
		cfg:    cfg,
		log:    zap.L().With(zap.String("component", "crm")),
	}
}

func (a *Adapter) readProperties() []string {
	return []string{
		propName, propAmount, propPipeline, propSource,
		propVAT, propDomain, propCategory, propStoreType,
		a.cfg.StatusProperty,
	}
}

// Get reads one deal directly from the record API. This is the authoritative
// read: unlike search results it reflects the latest writes.
func (a *Adapter) Get(ctx context.Context, dealID string) (*model.Deal, error) {
	d, err := a.client.GetDeal(ctx, dealID, a.readProperties())
	if err != nil {
		return nil, eris.Wrapf(err, "crm: get deal %s", dealID)
	}
	return a.toDeal(d), nil
}

// Pending returns deals whose status makes them claimable (to_start or
// failed). in_progress is deliberately excluded: another attempt owns those.
// Results come from the search index, which lags writes — treat them as
// candidates and re-read before claiming.
func (a *Adapter) Pending(ctx context.Context, limit int) ([]*model.Deal, error) {
	resp, err := a.client.SearchDeals(ctx, hubspot.SearchRequest{
		FilterGroups: []hubspot.FilterGroup{{
			Filters: []hubspot.Filter{{
				PropertyName: a.cfg.StatusProperty,
				Operator:     "IN",
				Values:       []string{string(model.StatusToStart), string(model.StatusFailed)},
			}},
		}},
		Properties: a.readProperties(),
		Limit:      limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "crm: search pending deals")
	}

	deals := make([]*model.Deal, 0, len(resp.Results))
	for i := range resp.Results {
		deals = append(deals, a.toDeal(&resp.Results[i]))
	}
	return deals, nil
}

// SetStatus writes the processing status property.
func (a *Adapter) SetStatus(ctx context.Context, dealID string, status model.ProcessingStatus) error {
	err := a.client.UpdateDeal(ctx, dealID, map[string]string{
		a.cfg.StatusProperty: string(status),
	})
	if err != nil {
		return eris.Wrapf(err, "crm: set status %s on deal %s", status, dealID)
	}
	a.log.Info("deal status updated",
		zap.String("deal_id", dealID),
		zap.String("status", string(status)),
	)
	return nil
}

// WriteResult persists the report payload onto the deal as an audit blob.
func (a *Adapter) WriteResult(ctx context.Context, dealID, payload string) error {
	err := a.client.UpdateDeal(ctx, dealID, map[string]string{
		a.cfg.ResultProperty: payload,
	})
	if err != nil {
		return eris.Wrapf(err, "crm: write result on deal %s", dealID)
	}
	return nil
}

// WriteQualification records a human qualification decision.
func (a *Adapter) WriteQualification(ctx context.Context, dealID, qualification string) error {
	err := a.client.UpdateDeal(ctx, dealID, map[string]string{
		a.cfg.QualifyField: qualification,
	})
	if err != nil {
		return eris.Wrapf(err, "crm: write qualification on deal %s", dealID)
	}
	a.log.Info("qualification recorded",
		zap.String("deal_id", dealID),
		zap.String("qualification", qualification),
	)
	return nil
}

// AddNote attaches a note to the deal, timestamped now.
func (a *Adapter) AddNote(ctx context.Context, dealID, body string) (string, error) {
	id, err := a.client.CreateNote(ctx, dealID, body, time.Now())
	if err != nil {
		return "", eris.Wrapf(err, "crm: add note to deal %s", dealID)
	}
	return id, nil
}

func (a *Adapter) toDeal(d *hubspot.Deal) *model.Deal {
	amount, _ := strconv.ParseFloat(d.Property(propAmount), 64)
	return &model.Deal{
		ID:        d.ID,
		Name:      d.Property(propName),
		Amount:    amount,
		Pipeline:  d.Property(propPipeline),
		Source:    d.Property(propSource),
		Status:    model.ProcessingStatus(d.Property(a.cfg.StatusProperty)),
		VATNumber: d.Property(propVAT),
		Domain:    d.Property(propDomain),
		Category:  d.Property(propCategory),
		StoreType: parseStoreType(d.Property(propStoreType)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// parseStoreType folds the CRM's free-form store type ("Physical Store",
// "E-commerce", ...) onto the two scoring paths. Anything not recognizably
// physical takes the online path.
func parseStoreType(raw string) model.StoreType {
	if strings.Contains(strings.ToLower(raw), "physical") {
		return model.StoreTypePhysical
	}
	return model.StoreTypeOnline
}
