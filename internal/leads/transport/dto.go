package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateLeadRequest creates a lead directly in a pipeline stage. Creation
// never fires transition side effects; those belong to updates.
type CreateLeadRequest struct {
	ClientName     string     `json:"clientName" validate:"required,min=1,max=200"`
	ClientPhone    string     `json:"clientPhone" validate:"omitempty,max=32"`
	Comment        string     `json:"comment" validate:"omitempty,max=2000"`
	PipelineID     uuid.UUID  `json:"pipelineId" validate:"required"`
	StageID        uuid.UUID  `json:"stageId" validate:"required"`
	GameDate       *time.Time `json:"gameDate"`
	GameTime       string     `json:"gameTime" validate:"omitempty,max=8"`
	PlayersCount   int        `json:"playersCount" validate:"gte=0"`
	PricePerPerson float64    `json:"pricePerPerson" validate:"gte=0"`
	Prepayment     float64    `json:"prepayment" validate:"gte=0"`
	ResponsibleID  *uuid.UUID `json:"responsibleId"`
}

// UpdateLeadRequest is the partial update body. Absent fields are untouched;
// unknown fields are silently dropped by the JSON decoder.
type UpdateLeadRequest struct {
	ClientName     OptionalString `json:"clientName"`
	ClientPhone    OptionalString `json:"clientPhone"`
	Comment        OptionalString `json:"comment"`
	GameDate       OptionalDate   `json:"gameDate"`
	GameTime       OptionalString `json:"gameTime"`
	PlayersCount   OptionalInt    `json:"playersCount"`
	PricePerPerson OptionalFloat  `json:"pricePerPerson"`
	TotalAmount    OptionalFloat  `json:"totalAmount"`
	Prepayment     OptionalFloat  `json:"prepayment"`
	AnimatorsCount OptionalInt    `json:"animatorsCount"`
	AnimatorRate   OptionalFloat  `json:"animatorRate"`
	HostsCount     OptionalInt    `json:"hostsCount"`
	HostRate       OptionalFloat  `json:"hostRate"`
	DJsCount       OptionalInt    `json:"djsCount"`
	DJRate         OptionalFloat  `json:"djRate"`
	ResponsibleID  OptionalUUID   `json:"responsibleId"`
	PipelineID     OptionalUUID   `json:"pipelineId"`
	StageID        OptionalUUID   `json:"stageId"`
}

// LeadResponse is the full lead record returned by every endpoint.
type LeadResponse struct {
	ID              uuid.UUID  `json:"id"`
	FranchiseID     uuid.UUID  `json:"franchiseId"`
	PipelineID      uuid.UUID  `json:"pipelineId"`
	StageID         uuid.UUID  `json:"stageId"`
	ClientName      string     `json:"clientName"`
	ClientPhone     string     `json:"clientPhone"`
	Comment         string     `json:"comment,omitempty"`
	GameDate        *string    `json:"gameDate,omitempty"`
	GameTime        string     `json:"gameTime,omitempty"`
	PlayersCount    int        `json:"playersCount"`
	PricePerPerson  float64    `json:"pricePerPerson"`
	TotalAmount     float64    `json:"totalAmount"`
	Prepayment      float64    `json:"prepayment"`
	AnimatorsCount  int        `json:"animatorsCount"`
	AnimatorRate    float64    `json:"animatorRate"`
	HostsCount      int        `json:"hostsCount"`
	HostRate        float64    `json:"hostRate"`
	DJsCount        int        `json:"djsCount"`
	DJRate          float64    `json:"djRate"`
	ResponsibleID   *uuid.UUID `json:"responsibleId,omitempty"`
	ResponsibleName string     `json:"responsibleName,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
