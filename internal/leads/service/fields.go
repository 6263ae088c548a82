package service

import (
	"strconv"
	"time"

	"franchise_ops_backend/internal/leads/domain"
	"franchise_ops_backend/internal/leads/repository"
	"franchise_ops_backend/internal/leads/transport"
	"franchise_ops_backend/platform/phone"

	"github.com/google/uuid"
)

// FieldChange records one applied field mutation, with both values rendered
// as text for the audit trail.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// fieldHandler applies one request field to the lead. Handlers run in a fixed
// order so the audit trail of a multi-field update is deterministic.
type fieldHandler struct {
	name  string
	apply func(lead *repository.Lead, req transport.UpdateLeadRequest) (FieldChange, bool)
}

// The stage reference is deliberately missing here: stage changes run through
// the transition engine, not the field updater.
var fieldHandlers = []fieldHandler{
	{"clientName", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyString("clientName", r.ClientName, &l.ClientName)
	}},
	{"clientPhone", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		opt := r.ClientPhone
		if opt.Set {
			opt.Value = phone.NormalizeE164(opt.Value)
		}
		return applyString("clientPhone", opt, &l.ClientPhone)
	}},
	{"comment", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyString("comment", r.Comment, &l.Comment)
	}},
	{"gameDate", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyDate("gameDate", r.GameDate, &l.GameDate)
	}},
	{"gameTime", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyString("gameTime", r.GameTime, &l.GameTime)
	}},
	{"playersCount", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyCount("playersCount", r.PlayersCount, &l.PlayersCount)
	}},
	{"pricePerPerson", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyMoney("pricePerPerson", r.PricePerPerson, &l.PricePerPerson)
	}},
	{"totalAmount", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyMoney("totalAmount", r.TotalAmount, &l.TotalAmount)
	}},
	{"prepayment", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyMoney("prepayment", r.Prepayment, &l.Prepayment)
	}},
	{"animatorsCount", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyCount("animatorsCount", r.AnimatorsCount, &l.AnimatorsCount)
	}},
	{"animatorRate", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyMoney("animatorRate", r.AnimatorRate, &l.AnimatorRate)
	}},
	{"hostsCount", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyCount("hostsCount", r.HostsCount, &l.HostsCount)
	}},
	{"hostRate", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyMoney("hostRate", r.HostRate, &l.HostRate)
	}},
	{"djsCount", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyCount("djsCount", r.DJsCount, &l.DJsCount)
	}},
	{"djRate", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyMoney("djRate", r.DJRate, &l.DJRate)
	}},
	{"responsibleId", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		return applyRef("responsibleId", r.ResponsibleID, &l.ResponsibleID)
	}},
	{"pipelineId", func(l *repository.Lead, r transport.UpdateLeadRequest) (FieldChange, bool) {
		if !r.PipelineID.Set || r.PipelineID.Value == nil || *r.PipelineID.Value == l.PipelineID {
			return FieldChange{}, false
		}
		change := FieldChange{Field: "pipelineId", Old: l.PipelineID.String(), New: r.PipelineID.Value.String()}
		l.PipelineID = *r.PipelineID.Value
		return change, true
	}},
}

// ApplyFields mutates the lead according to the partial update request and
// returns the list of fields that actually changed, in handler order. When
// playersCount or pricePerPerson moved and no explicit totalAmount was
// submitted, the total is recomputed as players times price.
func ApplyFields(lead *repository.Lead, req transport.UpdateLeadRequest) []FieldChange {
	var changes []FieldChange
	for _, h := range fieldHandlers {
		if change, ok := h.apply(lead, req); ok {
			changes = append(changes, change)
		}
	}

	if (req.PlayersCount.Set || req.PricePerPerson.Set) && !req.TotalAmount.Set {
		derived := float64(lead.PlayersCount) * lead.PricePerPerson
		if domain.MoneyChanged(lead.TotalAmount, derived) {
			changes = append(changes, FieldChange{
				Field: "totalAmount",
				Old:   formatMoney(lead.TotalAmount),
				New:   formatMoney(derived),
			})
			lead.TotalAmount = derived
		}
	}

	return changes
}

func applyString(name string, opt transport.OptionalString, target *string) (FieldChange, bool) {
	if !opt.Set || opt.Value == *target {
		return FieldChange{}, false
	}
	change := FieldChange{Field: name, Old: *target, New: opt.Value}
	*target = opt.Value
	return change, true
}

func applyMoney(name string, opt transport.OptionalFloat, target *float64) (FieldChange, bool) {
	if !opt.Set || !domain.MoneyChanged(*target, opt.Value) {
		return FieldChange{}, false
	}
	change := FieldChange{Field: name, Old: formatMoney(*target), New: formatMoney(opt.Value)}
	*target = opt.Value
	return change, true
}

func applyCount(name string, opt transport.OptionalInt, target *int) (FieldChange, bool) {
	if !opt.Set || opt.Value == *target {
		return FieldChange{}, false
	}
	change := FieldChange{Field: name, Old: strconv.Itoa(*target), New: strconv.Itoa(opt.Value)}
	*target = opt.Value
	return change, true
}

func applyDate(name string, opt transport.OptionalDate, target **time.Time) (FieldChange, bool) {
	if !opt.Set || sameDate(*target, opt.Value) {
		return FieldChange{}, false
	}
	change := FieldChange{Field: name, Old: formatDate(*target), New: formatDate(opt.Value)}
	*target = opt.Value
	return change, true
}

func applyRef(name string, opt transport.OptionalUUID, target **uuid.UUID) (FieldChange, bool) {
	if !opt.Set || sameRef(*target, opt.Value) {
		return FieldChange{}, false
	}
	change := FieldChange{Field: name, Old: formatRef(*target), New: formatRef(opt.Value)}
	*target = opt.Value
	return change, true
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameRef(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format("2006-01-02")
}

func formatRef(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
