package models

// Requests for the control-plane HTTP endpoints.

type CreateConfigRequest struct {
	Key        string `json:"key" validate:"required,max=32"`
	Time       string `json:"time" validate:"required,clock"`
	Amount     string `json:"amount" validate:"omitempty,decimal_amount"`
	BuyEnabled *bool  `json:"buy_enabled"`
}

// UpdateConfigRequest changes operator-owned fields only.
type UpdateConfigRequest struct {
	Key        string  `param:"key" json:"-" validate:"required"`
	Amount     *string `json:"amount" validate:"omitempty,decimal_amount"`
	BuyEnabled *bool   `json:"buy_enabled"`
}

type ConfigKeyRequest struct {
	Key string `param:"key" validate:"required"`
}

type RunAnalysisRequest struct {
	Symbols []string `json:"symbols" query:"symbols"`
	AsOf    string   `json:"as_of" query:"as_of"`
}

type RunTriggerRequest struct {
	At string `json:"at" query:"at"`
}

// RecommendationRequest accepts the pair with "-" or "_" in place of "/".
type RecommendationRequest struct {
	Symbol string `param:"symbol" validate:"required"`
}

type ConfigResponse struct {
	Key         string `json:"key"`
	Time        string `json:"time"`
	Amount      string `json:"amount"`
	BuyEnabled  bool   `json:"buy_enabled"`
	LastBuyDate string `json:"last_buy_date"`
	Version     int64  `json:"version"`
}

func NewConfigResponse(key string, c AssetTradeConfig) ConfigResponse {
	return ConfigResponse{
		Key:         key,
		Time:        c.Time,
		Amount:      c.Amount.String(),
		BuyEnabled:  c.BuyEnabled,
		LastBuyDate: c.LastBuyDate,
		Version:     c.Version,
	}
}
